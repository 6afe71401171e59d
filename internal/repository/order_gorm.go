package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// GormOrderRepository 基于 gorm 的订单仓储实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 创建订单
func (r *GormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 根据订单ID查询订单
func (r *GormOrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderNumber 根据订单号查询订单；未找到返回 (nil, nil)
func (r *GormOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateItems 批量插入订单行项目
func (r *GormOrderRepository) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// Delete 删除订单
func (r *GormOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Order{}).Error
}

// DeleteItems 删除订单行项目
func (r *GormOrderRepository) DeleteItems(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error
}

// MarkPaid 置 paid/processing；条件更新保证 paid 单调
func (r *GormOrderRepository) MarkPaid(ctx context.Context, orderID, gatewayReference string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, model.PaymentStatusPaid).
		Updates(map[string]any{
			"payment_status":    model.PaymentStatusPaid,
			"status":            model.OrderStatusProcessing,
			"payment_reference": gatewayReference,
			"updated_at":        time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkPaymentFailed 仅允许 pending -> failed
func (r *GormOrderRepository) MarkPaymentFailed(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": model.PaymentStatusFailed,
			"updated_at":     time.Now(),
		}).Error
}

// AppendHistory 追加订单状态流水
func (r *GormOrderRepository) AppendHistory(ctx context.Context, orderID, status string) error {
	return r.db.WithContext(ctx).Create(&model.OrderStatusHistory{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    status,
		ChangedAt: time.Now(),
	}).Error
}
