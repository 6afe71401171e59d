package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/quantum-checkout/internal/model"
)

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// ExistingIDs 批量查询存在的商品ID
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// Create 创建商品（漏斗下单的占位商品走这里）
	Create(ctx context.Context, product *model.Product) error
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *model.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	return r.db.WithContext(ctx).Create(product).Error
}
