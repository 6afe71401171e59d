package model

import (
	"time"
)

// Order 订单模型
type Order struct {
	ID            string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber   string  `json:"order_number" gorm:"uniqueIndex;not null"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email" gorm:"index"`
	CustomerPhone string  `json:"customer_phone"`
	Subtotal      float64 `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	DeliveryFee   float64 `json:"delivery_fee" gorm:"type:decimal(12,2);not null;default:0"`
	Total         float64 `json:"total" gorm:"type:decimal(12,2);not null"`

	Status        string `json:"status" gorm:"index;not null;default:pending"`
	PaymentStatus string `json:"payment_status" gorm:"index;not null;default:pending"`

	// Gateway reference that paid this order, set at reconciliation.
	PaymentReference string `json:"payment_reference" gorm:"index"`

	DeliveryMethod  string `json:"delivery_method"`
	ShippingAddress JSON   `json:"shipping_address"`
	PickupLocation  string `json:"pickup_location"`
	ShippingState   string `json:"shipping_state"`
	Delivery        JSON   `json:"delivery"`
	Metadata        JSON   `json:"metadata"`

	CreatedAt time.Time `json:"created_at" gorm:"index;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
)

// 支付状态常量；paid 为终态，绝不回退
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// OrderItem 订单行项目；product_id 可为空（商品不存在时仅存快照）
type OrderItem struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string    `json:"order_id" gorm:"index;not null"`
	ProductID       *string   `json:"product_id" gorm:"type:varchar(36)"`
	ProductName     string    `json:"product_name"`
	ProductPrice    float64   `json:"product_price" gorm:"type:decimal(12,2)"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	TotalPrice      float64   `json:"total_price" gorm:"type:decimal(12,2);not null"`
	ProductSnapshot JSON      `json:"product_snapshot"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusHistory 订单状态变更流水（append-only）
type OrderStatusHistory struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string    `json:"order_id" gorm:"index;not null"`
	Status    string    `json:"status" gorm:"not null"`
	ChangedAt time.Time `json:"changed_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
