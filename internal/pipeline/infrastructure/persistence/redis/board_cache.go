// Package redis 提供管线服务的 Redis 读缓存实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/cache"
)

const (
	boardKeyPrefix = "pipeline:board:"
	boardTTL       = 30 * time.Second
)

// BoardCache silo 看板读缓存，短 TTL，阶段变更后主动失效
type BoardCache struct {
	cache *cache.RedisCache
}

// NewBoardCache 创建看板缓存实例
func NewBoardCache(c *cache.RedisCache) *BoardCache {
	return &BoardCache{cache: c}
}

// GetBoard 读取 silo 看板缓存，未命中返回 (nil, false, nil)
func (b *BoardCache) GetBoard(ctx context.Context, siloID string) ([]*domain.Application, bool, error) {
	val, err := b.cache.Get(ctx, b.key(siloID))
	if err != nil {
		return nil, false, err
	}
	if val == "" {
		return nil, false, nil
	}

	var apps []*domain.Application
	if err := json.Unmarshal([]byte(val), &apps); err != nil {
		return nil, false, err
	}
	return apps, true, nil
}

// SetBoard 写入 silo 看板缓存
func (b *BoardCache) SetBoard(ctx context.Context, siloID string, apps []*domain.Application) error {
	return b.cache.SetJSON(ctx, b.key(siloID), apps, boardTTL)
}

// Invalidate 失效 silo 看板缓存
func (b *BoardCache) Invalidate(ctx context.Context, siloID string) error {
	return b.cache.Delete(ctx, b.key(siloID))
}

func (b *BoardCache) key(siloID string) string {
	return fmt.Sprintf("%s%s", boardKeyPrefix, siloID)
}
