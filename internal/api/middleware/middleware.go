package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/quantum-checkout/pkg/logger"
	"github.com/d60-Lab/quantum-checkout/pkg/response"
)

// RateLimit 支付入口的进程级令牌桶限流
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(r, burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
			return
		}
		c.Next()
	}
}

// AdminKey 运维端点的共享密钥校验；未配置密钥时端点不可用
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || c.GetHeader("x-admin-key") != key {
			response.Unauthorized(c, "admin key required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Recovery panic 恢复；配置 Sentry 时上报
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		if e, ok := err.(error); ok {
			sentry.CaptureException(e)
		} else {
			sentry.CaptureMessage(http.StatusText(http.StatusInternalServerError))
		}
		logger.Error("panic recovered", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	})
}
