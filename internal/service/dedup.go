package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup 已处理 reference 的短 TTL 标记，用于在重复投递时省掉一次
// 数据库往返。只是优化：正确性永远由唯一索引 + 幂等短路保证，
// redis 不可用时整体行为不变。
type Dedup struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedup(rdb *redis.Client, ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedup{rdb: rdb, ttl: ttl}
}

func (d *Dedup) key(reference string) string {
	return "reconciled:" + reference
}

// Processed reference 是否已有处理标记
func (d *Dedup) Processed(ctx context.Context, reference string) bool {
	if d == nil || d.rdb == nil {
		return false
	}
	n, err := d.rdb.Exists(ctx, d.key(reference)).Result()
	return err == nil && n > 0
}

// Mark 打上处理标记（best-effort）
func (d *Dedup) Mark(ctx context.Context, reference string) {
	if d == nil || d.rdb == nil {
		return
	}
	_ = d.rdb.SetNX(ctx, d.key(reference), "1", d.ttl).Err()
}
