package repository

import (
	"context"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单；order_number 冲突返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, order *model.Order) error

	// GetByID 根据订单ID查询订单
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// GetByOrderNumber 根据订单号查询订单；未找到返回 (nil, nil)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// CreateItems 批量插入订单行项目
	CreateItems(ctx context.Context, items []model.OrderItem) error

	// Delete 删除订单（仅用于创建失败的补偿回滚）
	Delete(ctx context.Context, id string) error

	// DeleteItems 删除订单行项目（仅用于补偿回滚）
	DeleteItems(ctx context.Context, orderID string) error

	// MarkPaid 将订单置为 paid/processing 并记录网关 reference。
	// 已是 paid 的订单不再改写；返回本次是否发生了状态变化。
	MarkPaid(ctx context.Context, orderID, gatewayReference string) (bool, error)

	// MarkPaymentFailed 将 pending 订单的支付状态置为 failed；
	// paid 订单永不回退。
	MarkPaymentFailed(ctx context.Context, orderID string) error

	// AppendHistory 追加订单状态流水
	AppendHistory(ctx context.Context, orderID, status string) error
}
