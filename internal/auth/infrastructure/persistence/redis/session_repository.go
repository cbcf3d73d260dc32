// Package redis 提供认证服务的 Redis 会话存储
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/cache"
)

const sessionKeyPrefix = "auth:session:"

// sessionRepository 会话仓储 Redis 实现，TTL 跟随会话过期时间
type sessionRepository struct {
	cache *cache.RedisCache
}

// NewSessionRepository 创建并返回一个新的 sessionRepository 实例。
func NewSessionRepository(c *cache.RedisCache) domain.SessionRepository {
	return &sessionRepository{cache: c}
}

// Save 保存会话
func (r *sessionRepository) Save(ctx context.Context, session *domain.AuthSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.cache.SetJSON(ctx, r.key(session.Token), session, ttl)
}

// Get 获取会话，不存在或已过期时返回 (nil, nil)
func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.AuthSession, error) {
	val, err := r.cache.Get(ctx, r.key(token))
	if err != nil {
		return nil, err
	}
	if val == "" {
		return nil, nil
	}

	var session domain.AuthSession
	if err := r.cache.GetJSON(ctx, r.key(token), &session); err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, nil
	}
	return &session, nil
}

// Delete 删除会话
func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	return r.cache.Delete(ctx, r.key(token))
}

func (r *sessionRepository) key(token string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, token)
}
