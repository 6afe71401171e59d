package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/quantum-checkout/internal/service"
	"github.com/d60-Lab/quantum-checkout/pkg/response"
)

// CreateFunnelOrder 漏斗下单
// @Summary 创建订单与支付尝试
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body checkoutRequest true "下单信息"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/funnel/create [post]
func (h *Handler) CreateFunnelOrder(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}

	result, err := h.checkout.CreateOrder(c.Request.Context(), req.normalize())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrOrderCreation):
			response.InternalError(c, "Failed to create order")
		case errors.Is(err, service.ErrOrderItems):
			response.InternalError(c, "Failed to create order items")
		case errors.Is(err, service.ErrPaymentAttempt):
			response.InternalError(c, "Failed to create payment attempt")
		default:
			response.InternalError(c, "Internal server error")
		}
		return
	}
	response.Created(c, result)
}
