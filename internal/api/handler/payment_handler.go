package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/service"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
	"github.com/d60-Lab/quantum-checkout/pkg/response"
)

type confirmRequest struct {
	PaymentReference  string `json:"paymentReference"`
	PaystackReference string `json:"paystackReference"`
	Simulate          bool   `json:"simulate"`

	// only consulted when building a simulated verification
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
}

// ConfirmPayment 客户端支付确认入口
// @Summary 确认并对账一笔支付
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body confirmRequest true "支付reference"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/payments/confirm [post]
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "payment reference required")
		return
	}
	if req.PaymentReference == "" && req.PaystackReference == "" {
		response.BadRequest(c, "payment reference required")
		return
	}
	if req.PaymentReference == "" {
		req.PaymentReference = req.PaystackReference
	}

	in := service.ReconcileInput{
		PaymentReference: req.PaymentReference,
		GatewayReference: req.PaystackReference,
	}
	if req.Simulate {
		sim, ok := h.simulatedVerification(c, &req)
		if !ok {
			return
		}
		in.PreVerified = sim
	}

	h.runReconcile(c, in)
}

// VerifyPayment 客户端回调验证入口；要求支付尝试已存在
// @Summary 验证并对账一笔支付
// @Tags 支付
// @Router /api/payments/verify [post]
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentReference == "" {
		response.BadRequest(c, "Payment reference is required")
		return
	}

	attempt, err := h.payments.GetAttemptByReference(c.Request.Context(), req.PaymentReference)
	if err != nil {
		response.InternalError(c, "Internal server error")
		return
	}
	if attempt == nil {
		response.NotFound(c, "Payment attempt not found")
		return
	}

	h.runReconcile(c, service.ReconcileInput{
		PaymentReference: req.PaymentReference,
		GatewayReference: req.PaystackReference,
	})
}

// VerifyPaymentDirect 直接透传网关验证结果（诊断用）
// @Summary 查询网关验证结果
// @Tags 支付
// @Router /api/payments/verify [get]
func (h *Handler) VerifyPaymentDirect(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		response.BadRequest(c, "Payment reference is required")
		return
	}
	v, err := h.gw.Verify(c.Request.Context(), reference)
	if err != nil {
		response.BadGateway(c, "Failed to verify payment with Paystack")
		return
	}
	response.Success(c, gin.H{"verification": v})
}

// HostedCallback hosted checkout 浏览器回跳：对账后重定向到感谢页
// @Summary hosted checkout 回调
// @Tags 支付
// @Router /api/paystack/hosted/callback [get]
func (h *Handler) HostedCallback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	if reference == "" {
		response.BadRequest(c, "reference required")
		return
	}

	result, err := h.reconcile.Reconcile(c.Request.Context(), service.ReconcileInput{
		PaymentReference: reference,
		GatewayReference: reference,
	})
	if err != nil {
		logger.Warn("hosted callback reconciliation failed",
			zap.String("reference", reference), zap.Error(err))
		c.Redirect(http.StatusFound, "/payment-failed?ref="+reference)
		return
	}
	c.Redirect(http.StatusFound, "/thank-you-premium?order="+result.OrderID+"&ref="+reference)
}

func (h *Handler) runReconcile(c *gin.Context, in service.ReconcileInput) {
	result, err := h.reconcile.Reconcile(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrTransport):
			response.BadGateway(c, "Failed to verify with Paystack")
		case errors.Is(err, service.ErrPaymentNotSuccessful):
			response.BadRequest(c, "Payment not successful")
		case errors.Is(err, service.ErrAmountMismatch):
			response.BadRequest(c, "Amount mismatch")
		default:
			response.InternalError(c, "Internal server error")
		}
		return
	}
	response.Success(c, gin.H{
		"orderId":           result.OrderID,
		"alreadyReconciled": result.AlreadyReconciled,
		"verification":      result.Verification,
	})
}

// simulatedVerification 冒烟测试旁路：仅限非生产环境，且请求头中的
// token 必须与配置一致。每次使用都会被记录。
func (h *Handler) simulatedVerification(c *gin.Context, req *confirmRequest) (*gateway.Verification, bool) {
	if h.cfg.IsProduction() || h.cfg.SmokeTestToken == "" {
		response.Unauthorized(c, "Simulated verification is not enabled")
		return nil, false
	}
	if c.GetHeader("x-smoke-test-token") != h.cfg.SmokeTestToken {
		response.Unauthorized(c, "Invalid or missing smoke test token")
		return nil, false
	}

	reference := req.PaystackReference
	if reference == "" {
		reference = req.PaymentReference
	}
	amountKobo := int64(100000)
	email := req.CustomerEmail
	phone := req.CustomerPhone
	if attempt, err := h.payments.GetAttemptByReference(c.Request.Context(), req.PaymentReference); err == nil && attempt != nil {
		amountKobo = service.ExpectedKobo(attempt.Amount)
		if attempt.Email != "" {
			email = attempt.Email
		}
		if attempt.Phone != "" {
			phone = attempt.Phone
		}
	}
	name := strings.Fields(req.CustomerName)
	first, last := "Test", "User"
	if len(name) > 0 {
		first = name[0]
		last = strings.Join(name[1:], " ")
	}
	logger.Warn("smoke-test simulated verification requested",
		zap.String("reference", reference), zap.String("client_ip", c.ClientIP()))
	return &gateway.Verification{
		Status:     "success",
		Reference:  reference,
		AmountKobo: amountKobo,
		Currency:   "NGN",
		Customer:   gateway.Customer{Email: email, FirstName: first, LastName: last, Phone: phone},
		Metadata:   map[string]interface{}{"source": "simulated"},
	}, true
}
