package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// GormPaymentRepository 基于 gorm 的支付仓储实现
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

// CreateAttempt 创建支付尝试
func (r *GormPaymentRepository) CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	now := time.Now()
	if attempt.InitiatedAt.IsZero() {
		attempt.InitiatedAt = now
	}
	attempt.CreatedAt = now
	return r.db.WithContext(ctx).Create(attempt).Error
}

// GetAttemptByReference 按 reference 查询支付尝试
func (r *GormPaymentRepository) GetAttemptByReference(ctx context.Context, reference string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetAttemptByGatewayReference 按网关侧 reference 查询支付尝试
func (r *GormPaymentRepository) GetAttemptByGatewayReference(ctx context.Context, paystackReference string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).Where("paystack_reference = ?", paystackReference).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// SetPaystackReference 记录网关侧 reference
func (r *GormPaymentRepository) SetPaystackReference(ctx context.Context, paymentReference, paystackReference string) error {
	return r.db.WithContext(ctx).
		Model(&model.PaymentAttempt{}).
		Where("payment_reference = ?", paymentReference).
		Update("paystack_reference", paystackReference).Error
}

// MarkAttemptSuccess 仅 pending -> success
func (r *GormPaymentRepository) MarkAttemptSuccess(ctx context.Context, reference string, gatewayData model.JSON) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.PaymentAttempt{}).
		Where("payment_reference = ? AND status = ?", reference, model.AttemptStatusPending).
		Updates(map[string]any{
			"status":        model.AttemptStatusSuccess,
			"completed_at":  now,
			"paystack_data": gatewayData,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkAttemptFailed 仅 pending -> failed
func (r *GormPaymentRepository) MarkAttemptFailed(ctx context.Context, reference string, gatewayData model.JSON) error {
	now := time.Now()
	updates := map[string]any{
		"status":       model.AttemptStatusFailed,
		"completed_at": now,
	}
	if gatewayData != nil {
		updates["paystack_data"] = gatewayData
	}
	return r.db.WithContext(ctx).
		Model(&model.PaymentAttempt{}).
		Where("payment_reference = ? AND status = ?", reference, model.AttemptStatusPending).
		Updates(updates).Error
}

// EnsurePayment 幂等插入支付记录；reference 唯一索引吸收并发重复
func (r *GormPaymentRepository) EnsurePayment(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	var existing model.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", payment.Reference).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payment).Error; err != nil {
		return nil, err
	}

	// Re-select so a concurrent winner's row is what we hand back.
	if err := r.db.WithContext(ctx).Where("reference = ?", payment.Reference).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetPaymentByReference 按 reference 查询支付记录
func (r *GormPaymentRepository) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentFailed 支付记录置 failed
func (r *GormPaymentRepository) MarkPaymentFailed(ctx context.Context, reference string) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("reference = ?", reference).
		Updates(map[string]any{
			"status":     model.PaymentFailed,
			"updated_at": time.Now(),
		}).Error
}

// AppendEvent 追加支付事件流水
func (r *GormPaymentRepository) AppendEvent(ctx context.Context, reference, eventType string, payload model.JSON) error {
	return r.db.WithContext(ctx).Create(&model.PaymentEvent{
		ID:        uuid.New().String(),
		Reference: reference,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}).Error
}
