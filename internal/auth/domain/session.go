package domain

import (
	"context"
	"time"

	"github.com/fundflow/backoffice/pkg/authn"
)

// AuthSession 登录会话，与 JWT 同生命周期，用于主动注销
type AuthSession struct {
	Token     string     `json:"token"`
	UserID    uint       `json:"user_id"`
	Email     string     `json:"email"`
	Role      authn.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// IsExpired 会话是否已过期
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionRepository 会话仓储接口，仅实现 Redis 版本
type SessionRepository interface {
	Save(ctx context.Context, session *AuthSession) error
	Get(ctx context.Context, token string) (*AuthSession, error)
	Delete(ctx context.Context, token string) error
}
