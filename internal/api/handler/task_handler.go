package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/quantum-checkout/pkg/response"
)

type processQueueRequest struct {
	Limit int `json:"limit"`
}

// ProcessEmailQueue 手动触发邮件队列重试（worker/运维调用）
// @Summary 处理待重试邮件队列
// @Tags 任务
// @Router /api/tasks/process-email-queue [post]
func (h *Handler) ProcessEmailQueue(c *gin.Context) {
	var req processQueueRequest
	_ = c.ShouldBindJSON(&req)
	if req.Limit <= 0 {
		req.Limit = 10
	}
	processed, err := h.notifier.ProcessQueue(c.Request.Context(), req.Limit)
	if err != nil {
		response.InternalError(c, "Failed to process queue")
		return
	}
	response.Success(c, gin.H{"processed": processed})
}

// Health 健康检查
// @Summary 健康检查
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
