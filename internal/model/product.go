package model

import (
	"time"
)

// Product 商品；漏斗下单可自动创建 inactive 占位商品
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Price       float64   `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Stock       int       `json:"stock" gorm:"not null;default:0"`
	Metadata    JSON      `json:"metadata"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string {
	return "products"
}

// EmailQueueItem 邮件发送失败后的持久化重试队列
type EmailQueueItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ToEmail   string    `json:"to_email" gorm:"not null"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html" gorm:"type:text"`
	Attempts  int       `json:"attempts" gorm:"not null;default:0"`
	LastError string    `json:"last_error"`
	NextTry   time.Time `json:"next_try" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EmailQueueItem) TableName() string {
	return "email_queue"
}
