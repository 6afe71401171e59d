package repository

import (
	"context"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// PaymentRepository 支付尝试 / 支付记录 / 支付事件仓储接口
type PaymentRepository interface {
	// CreateAttempt 创建支付尝试；payment_reference 冲突返回
	// gorm.ErrDuplicatedKey
	CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error

	// GetAttemptByReference 按 reference 查询支付尝试；未找到返回 (nil, nil)
	GetAttemptByReference(ctx context.Context, reference string) (*model.PaymentAttempt, error)

	// GetAttemptByGatewayReference 按网关侧 reference 查询（hosted
	// checkout 回调只带网关 reference）；未找到返回 (nil, nil)
	GetAttemptByGatewayReference(ctx context.Context, paystackReference string) (*model.PaymentAttempt, error)

	// SetPaystackReference 记录网关侧分配的 reference
	SetPaystackReference(ctx context.Context, paymentReference, paystackReference string) error

	// MarkAttemptSuccess 仅 pending -> success；返回本次是否发生变化
	MarkAttemptSuccess(ctx context.Context, reference string, gatewayData model.JSON) (bool, error)

	// MarkAttemptFailed 仅 pending -> failed
	MarkAttemptFailed(ctx context.Context, reference string, gatewayData model.JSON) error

	// EnsurePayment 按 reference 幂等地保证支付记录存在；并发重复插入
	// 收敛为同一行
	EnsurePayment(ctx context.Context, payment *model.Payment) (*model.Payment, error)

	// GetPaymentByReference 按 reference 查询支付记录；未找到返回 (nil, nil)
	GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error)

	// MarkPaymentFailed 将支付记录置为 failed（charge.failed webhook）
	MarkPaymentFailed(ctx context.Context, reference string) error

	// AppendEvent 追加支付事件审计流水
	AppendEvent(ctx context.Context, reference, eventType string, payload model.JSON) error
}
