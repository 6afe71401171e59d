package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
)

// ReconcileInput 对账入参；客户端确认与网关 webhook 两条路径共用。
// PreVerified 仅供冒烟测试旁路注入伪造的验证结果，生产环境恒为 nil。
type ReconcileInput struct {
	PaymentReference string
	GatewayReference string
	PreVerified      *gateway.Verification
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	OrderID           string
	AlreadyReconciled bool
	Verification      *gateway.Verification
}

// ReconcileService 支付对账编排。每个 reference 的状态机：
//
//	PENDING -> RECONCILED（网关成功且金额一致）
//	PENDING -> FAILED（网关失败或金额不符）
//	RECONCILED -> RECONCILED（重复调用只做状态修复，幂等）
//
// 验证通过之后的每一步写入都是独立 best-effort：某一步失败不阻塞
// 其余步骤，后续任何一次对同一 reference 的对账调用都会把缺失的
// 状态补齐。
type ReconcileService struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	gw       gateway.Client
	dedup    *Dedup
	notifier *Notifier
	admin    *AdminNotifier
}

func NewReconcileService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	gw gateway.Client,
	dedup *Dedup,
	notifier *Notifier,
	admin *AdminNotifier,
) *ReconcileService {
	return &ReconcileService{
		orders:   orders,
		payments: payments,
		gw:       gw,
		dedup:    dedup,
		notifier: notifier,
		admin:    admin,
	}
}

// Reconcile 验证一笔交易并把 attempt / payment / order 收敛到一致的
// paid 状态。attempt 缺失不是错误：网关可能先于客户端路径送达。
func (s *ReconcileService) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	reference := in.PaymentReference
	verifyRef := in.GatewayReference
	if verifyRef == "" {
		verifyRef = reference
	}

	attempt, err := s.payments.GetAttemptByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("load payment attempt: %w", err)
	}
	if attempt == nil && in.GatewayReference != "" {
		// hosted checkout callbacks only carry the gateway's reference
		attempt, err = s.payments.GetAttemptByGatewayReference(ctx, in.GatewayReference)
		if err != nil {
			return nil, fmt.Errorf("load payment attempt: %w", err)
		}
		if attempt != nil {
			reference = attempt.PaymentReference
		}
	}

	// 幂等短路：attempt 已 success 则跳过重复验证，只做下游修复。
	if attempt != nil && attempt.Status == model.AttemptStatusSuccess {
		if s.dedup.Processed(ctx, verifyRef) {
			// 标记仅在一次完整收敛之后写入，重复投递可以放心短路
			return &ReconcileResult{OrderID: attempt.OrderID, AlreadyReconciled: true}, nil
		}
		orderID, converged := s.repair(ctx, attempt, verifyRef)
		if converged {
			s.dedup.Mark(ctx, verifyRef)
		}
		return &ReconcileResult{OrderID: orderID, AlreadyReconciled: true}, nil
	}

	verification := in.PreVerified
	if verification == nil {
		verification, err = s.gw.Verify(ctx, verifyRef)
		if err != nil {
			// 传输层失败：对本次调用终态，调用方按自身策略重试
			if markErr := s.payments.MarkAttemptFailed(ctx, reference, nil); markErr != nil {
				logger.Warn("mark attempt failed errored", zap.String("reference", reference), zap.Error(markErr))
			}
			return nil, fmt.Errorf("verify %s: %w", verifyRef, err)
		}
	} else {
		logger.Warn("using simulated verification, bypassing gateway",
			zap.String("reference", verifyRef))
	}

	raw := model.JSON(verification.Raw())
	if !verification.Succeeded() {
		if markErr := s.payments.MarkAttemptFailed(ctx, reference, raw); markErr != nil {
			logger.Warn("mark attempt failed errored", zap.String("reference", reference), zap.Error(markErr))
		}
		return nil, fmt.Errorf("%w: gateway status %q", ErrPaymentNotSuccessful, verification.Status)
	}

	// 金额校验：最小货币单位必须严格相等；attempt 缺失时（webhook 先到）
	// 以网关金额为准
	paidKobo := verification.AmountKobo
	expectedKobo := paidKobo
	if attempt != nil {
		expectedKobo = toKobo(attempt.Amount)
	}
	if paidKobo != expectedKobo {
		logger.Error("amount mismatch",
			zap.String("reference", reference),
			zap.Int64("paid_kobo", paidKobo),
			zap.Int64("expected_kobo", expectedKobo))
		if markErr := s.payments.MarkAttemptFailed(ctx, reference, raw); markErr != nil {
			logger.Warn("mark attempt failed errored", zap.String("reference", reference), zap.Error(markErr))
		}
		return nil, fmt.Errorf("%w: paid %d expected %d", ErrAmountMismatch, paidKobo, expectedKobo)
	}

	if _, err := s.payments.MarkAttemptSuccess(ctx, reference, raw); err != nil {
		logger.Warn("mark attempt success errored", zap.String("reference", reference), zap.Error(err))
	}

	orderID := s.resolveOrderID(ctx, attempt, verifyRef, verification)
	if s.converge(ctx, orderID, verifyRef, verification, raw) {
		s.dedup.Mark(ctx, verifyRef)
	}

	return &ReconcileResult{OrderID: orderID, Verification: verification}, nil
}

// repair 幂等路径：不再访问网关，仅确保 payment 记录和订单反映 paid。
// 之前的某次运行可能在步骤之间崩溃。
func (s *ReconcileService) repair(ctx context.Context, attempt *model.PaymentAttempt, verifyRef string) (string, bool) {
	orderID := attempt.OrderID
	raw := attempt.PaystackData
	converged := s.converge(ctx, orderID, verifyRef, &gateway.Verification{
		Status:     "success",
		Reference:  verifyRef,
		AmountKobo: toKobo(attempt.Amount),
		Customer:   gateway.Customer{Email: attempt.Email, Phone: attempt.Phone},
	}, raw)
	return orderID, converged
}

// resolveOrderID attempt 的 order_id > 网关 metadata 内嵌 order id >
// 已有 payment 记录的 order id > 自动创建最小订单（webhook-first
// race）。payment 查询保证同一 reference 的重复投递永远落在同一张
// 订单上。
func (s *ReconcileService) resolveOrderID(ctx context.Context, attempt *model.PaymentAttempt, verifyRef string, v *gateway.Verification) string {
	if attempt != nil && attempt.OrderID != "" {
		return attempt.OrderID
	}
	if id := metadataOrderID(v.Metadata); id != "" {
		return id
	}
	payment, err := s.payments.GetPaymentByReference(ctx, verifyRef)
	if err != nil {
		logger.Warn("payment lookup failed", zap.String("reference", verifyRef), zap.Error(err))
	}
	if payment != nil && payment.OrderID != nil && *payment.OrderID != "" {
		return *payment.OrderID
	}
	return s.autoCreateOrder(ctx, v)
}

// metadataOrderID 网关 metadata 中的订单ID，容忍历史字段名
func metadataOrderID(meta map[string]interface{}) string {
	for _, key := range []string{"orderId", "order_id"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// autoCreateOrder webhook 先于（或独立于）客户端下单到达时，用网关
// 的付款人/金额数据补一张最小订单
func (s *ReconcileService) autoCreateOrder(ctx context.Context, v *gateway.Verification) string {
	amount := float64(v.AmountKobo) / 100
	name := strings.TrimSpace(v.Customer.FirstName + " " + v.Customer.LastName)
	order := &model.Order{
		OrderNumber:   fmt.Sprintf("QM-%d", time.Now().UnixMilli()),
		CustomerName:  name,
		CustomerEmail: v.Customer.Email,
		CustomerPhone: v.Customer.Phone,
		Subtotal:      amount,
		DeliveryFee:   0,
		Total:         amount,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		Metadata: model.JSON{
			"source":             "created-from-gateway-verification",
			"paystack_reference": v.Reference,
		},
	}
	if err := s.orders.Create(ctx, order); err != nil {
		logger.Warn("auto-create order failed", zap.String("reference", v.Reference), zap.Error(err))
		return ""
	}
	logger.Info("auto-created order for gateway-first payment",
		zap.String("order_id", order.ID), zap.String("reference", v.Reference))
	return order.ID
}

// converge 验证之后的收敛写入：payment 记录、订单 paid、状态流水、
// 通知。每一步 best-effort，失败记日志，由后续对账调用修复。返回
// 是否全部步骤成功；dedup 标记只在完整收敛后写入，保证重试总能
// 触达尚未修复的状态。
func (s *ReconcileService) converge(ctx context.Context, orderID, verifyRef string, v *gateway.Verification, raw model.JSON) bool {
	converged := true
	var orderRef *string
	if orderID != "" {
		orderRef = &orderID
	}
	if _, err := s.payments.EnsurePayment(ctx, &model.Payment{
		Reference:     verifyRef,
		OrderID:       orderRef,
		Amount:        float64(v.AmountKobo) / 100,
		Status:        model.PaymentCompleted,
		PaymentMethod: "paystack",
		Email:         v.Customer.Email,
		Metadata:      raw,
	}); err != nil {
		logger.Warn("ensure payment failed", zap.String("reference", verifyRef), zap.Error(err))
		converged = false
	}

	if orderID == "" {
		return false
	}

	changed, err := s.orders.MarkPaid(ctx, orderID, verifyRef)
	if err != nil {
		logger.Warn("order paid update failed", zap.String("order_id", orderID), zap.Error(err))
		converged = false
	}
	if changed {
		if err := s.orders.AppendHistory(ctx, orderID, model.PaymentStatusPaid); err != nil {
			logger.Warn("order history append failed", zap.String("order_id", orderID), zap.Error(err))
			converged = false
		}
		s.admin.Notify(ctx, map[string]interface{}{
			"event":     "payment_success",
			"reference": verifyRef,
			"orderId":   orderID,
			"amount":    float64(v.AmountKobo) / 100,
		})
		if order, err := s.orders.GetByID(ctx, orderID); err == nil {
			s.notifier.Dispatch(order)
		} else {
			logger.Warn("load order for notification failed", zap.String("order_id", orderID), zap.Error(err))
			converged = false
		}
	}
	return converged
}

// HandleChargeFailed 处理 charge.failed webhook。paid 订单受单调性
// 保护，迟到的失败事件不会回退已支付状态。
func (s *ReconcileService) HandleChargeFailed(ctx context.Context, reference string, meta map[string]interface{}) {
	attempt, err := s.payments.GetAttemptByReference(ctx, reference)
	if err != nil {
		logger.Warn("load payment attempt failed", zap.String("reference", reference), zap.Error(err))
	}
	if attempt == nil {
		// hosted checkout 的事件只带网关 reference
		if byGateway, gwErr := s.payments.GetAttemptByGatewayReference(ctx, reference); gwErr == nil && byGateway != nil {
			attempt = byGateway
			reference = byGateway.PaymentReference
		}
	}

	if err := s.payments.MarkAttemptFailed(ctx, reference, nil); err != nil {
		logger.Warn("mark attempt failed errored", zap.String("reference", reference), zap.Error(err))
	}
	if err := s.payments.MarkPaymentFailed(ctx, reference); err != nil {
		logger.Warn("mark payment failed errored", zap.String("reference", reference), zap.Error(err))
	}

	orderID := metadataOrderID(meta)
	if orderID == "" && attempt != nil {
		orderID = attempt.OrderID
	}
	if orderID != "" {
		if err := s.orders.MarkPaymentFailed(ctx, orderID); err != nil {
			logger.Warn("mark order payment failed errored", zap.String("order_id", orderID), zap.Error(err))
		}
	}
}

// ExpectedKobo 导出换算便于 handler 侧构造模拟验证
func ExpectedKobo(amount float64) int64 {
	return toKobo(amount)
}
