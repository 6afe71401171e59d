package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// EmailQueueRepository 邮件重试队列仓储接口
type EmailQueueRepository interface {
	// Enqueue 入队一封待重试邮件
	Enqueue(ctx context.Context, item *model.EmailQueueItem) error

	// Due 取出 next_try 已到期的队列项，按创建时间升序
	Due(ctx context.Context, limit int) ([]model.EmailQueueItem, error)

	// Delete 发送成功后移除
	Delete(ctx context.Context, id string) error

	// Reschedule 发送失败后记录错误并推迟下次尝试
	Reschedule(ctx context.Context, id string, attempts int, lastError string, nextTry time.Time) error
}

type GormEmailQueueRepository struct {
	db *gorm.DB
}

func NewEmailQueueRepository(db *gorm.DB) EmailQueueRepository {
	return &GormEmailQueueRepository{db: db}
}

func (r *GormEmailQueueRepository) Enqueue(ctx context.Context, item *model.EmailQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	if item.NextTry.IsZero() {
		item.NextTry = now
	}
	item.CreatedAt = now
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormEmailQueueRepository) Due(ctx context.Context, limit int) ([]model.EmailQueueItem, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []model.EmailQueueItem
	err := r.db.WithContext(ctx).
		Where("next_try <= ?", time.Now()).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *GormEmailQueueRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.EmailQueueItem{}).Error
}

func (r *GormEmailQueueRepository) Reschedule(ctx context.Context, id string, attempts int, lastError string, nextTry time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   attempts,
			"last_error": lastError,
			"next_try":   nextTry,
		}).Error
}
