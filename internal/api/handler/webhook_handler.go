package handler

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/internal/service"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
	"github.com/d60-Lab/quantum-checkout/pkg/response"
)

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string                 `json:"reference"`
		Amount    int64                  `json:"amount"`
		Status    string                 `json:"status"`
		Currency  string                 `json:"currency"`
		Customer  gateway.Customer       `json:"customer"`
		Metadata  map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// PaystackWebhook 网关事件入口。签名验证无条件执行：缺失或错误的
// x-paystack-signature 一律 401，任何环境都不放行。
// @Summary Paystack webhook
// @Tags 支付
// @Router /api/paystack/webhook [post]
func (h *Handler) PaystackWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "cannot read body")
		return
	}
	if !h.verifySignature(rawBody, c.GetHeader("x-paystack-signature")) {
		logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "Invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	var payload model.JSON
	_ = json.Unmarshal(rawBody, &payload)
	if err := h.payments.AppendEvent(ctx, event.Data.Reference, "webhook_"+event.Event, payload); err != nil {
		logger.Warn("payment event append failed", zap.String("reference", event.Data.Reference), zap.Error(err))
	}

	switch event.Event {
	case "charge.success":
		paymentRef := metadataString(event.Data.Metadata, "paymentReference", "payment_reference")
		if paymentRef == "" {
			paymentRef = event.Data.Reference
		}
		_, err := h.reconcile.Reconcile(ctx, service.ReconcileInput{
			PaymentReference: paymentRef,
			GatewayReference: event.Data.Reference,
		})
		switch {
		case err == nil:
			response.Success(c, nil)
		case errors.Is(err, gateway.ErrTransport):
			// 让网关按自身策略重试本次投递
			response.BadGateway(c, "verification unavailable")
		case errors.Is(err, service.ErrPaymentNotSuccessful), errors.Is(err, service.ErrAmountMismatch):
			response.BadRequest(c, "payment rejected")
		default:
			response.InternalError(c, "reconciliation failed")
		}
	case "charge.failed":
		paymentRef := metadataString(event.Data.Metadata, "paymentReference", "payment_reference")
		if paymentRef == "" {
			paymentRef = event.Data.Reference
		}
		h.reconcile.HandleChargeFailed(ctx, paymentRef, event.Data.Metadata)
		response.Success(c, nil)
	default:
		// unhandled event type: acknowledge so the gateway stops retrying
		response.Success(c, nil)
	}
}

func (h *Handler) verifySignature(rawBody []byte, signature string) bool {
	if h.cfg.PaystackWebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(h.cfg.PaystackWebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func metadataString(meta map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
