package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/quantum-checkout/config"
	"github.com/d60-Lab/quantum-checkout/internal/api/handler"
	"github.com/d60-Lab/quantum-checkout/internal/api/middleware"
)

// NewRouter 组装路由与中间件
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(otelgin.Middleware("quantum-checkout"))

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.POST("/funnel/create", h.CreateFunnelOrder)

		payments := api.Group("/payments")
		payments.Use(middleware.RateLimit(rate.Limit(20), 40))
		{
			payments.POST("/confirm", h.ConfirmPayment)
			payments.POST("/verify", h.VerifyPayment)
			payments.GET("/verify", h.VerifyPaymentDirect)
		}

		paystack := api.Group("/paystack")
		{
			paystack.POST("/webhook", h.PaystackWebhook)
			paystack.GET("/hosted/callback", h.HostedCallback)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.AdminKey(cfg.AdminAPIKey))
		{
			tasks.POST("/process-email-queue", h.ProcessEmailQueue)
		}
	}

	return r
}
