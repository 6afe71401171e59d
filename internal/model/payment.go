package model

import (
	"time"
)

// PaymentAttempt 一次支付尝试；payment_reference 全局唯一，状态单调
// pending -> success | failed，此后不再变化。
type PaymentAttempt struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID           string     `json:"order_id" gorm:"index"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	PaymentReference  string     `json:"payment_reference" gorm:"uniqueIndex;not null"`
	PaystackReference string     `json:"paystack_reference" gorm:"index"`
	Amount            float64    `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency          string     `json:"currency" gorm:"not null;default:NGN"`
	Status            string     `json:"status" gorm:"index;not null;default:pending"`
	PaymentProvider   string     `json:"payment_provider" gorm:"not null;default:paystack"`
	PaystackData      JSON       `json:"paystack_data"`
	Metadata          JSON       `json:"metadata"`
	InitiatedAt       time.Time  `json:"initiated_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}

// 支付尝试状态常量
const (
	AttemptStatusPending = "pending"
	AttemptStatusSuccess = "success"
	AttemptStatusFailed  = "failed"
)

// Payment 经网关确认的规范支付记录；reference 幂等，绝不重复插入
type Payment struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Reference     string    `json:"reference" gorm:"uniqueIndex;not null"`
	OrderID       *string   `json:"order_id" gorm:"index;type:varchar(36)"`
	Amount        float64   `json:"amount" gorm:"type:decimal(12,2)"`
	Status        string    `json:"status" gorm:"not null;default:completed"`
	PaymentMethod string    `json:"payment_method" gorm:"not null;default:paystack"`
	Email         string    `json:"email"`
	Metadata      JSON      `json:"metadata"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string {
	return "payments"
}

const (
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// PaymentEvent webhook/对账事件审计流水
type PaymentEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Reference string    `json:"reference" gorm:"index;not null"`
	EventType string    `json:"event_type" gorm:"not null"`
	Payload   JSON      `json:"payload"`
	CreatedAt time.Time `json:"created_at" gorm:"index;not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
