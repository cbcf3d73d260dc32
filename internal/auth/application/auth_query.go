package application

import (
	"context"

	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/authn"
)

// AuthQueryService 认证查询服务
type AuthQueryService struct {
	repo domain.UserRepository
}

// NewAuthQueryService 创建认证查询服务实例
func NewAuthQueryService(repo domain.UserRepository) *AuthQueryService {
	return &AuthQueryService{repo: repo}
}

// GetProfile 返回调用者自己的用户档案
func (s *AuthQueryService) GetProfile(ctx context.Context, caller authn.Identity) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// GetUser 返回任意用户档案，仅管理员可调用
func (s *AuthQueryService) GetUser(ctx context.Context, caller authn.Identity, userID uint) (*domain.User, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}
