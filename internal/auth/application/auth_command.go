// Package application 编排认证用例：注册、登录、注销与 silo 分配
package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// RegisterCommand 注册命令
type RegisterCommand struct {
	Email    string
	Password string
	Role     string
	Silos    []string
}

// LoginCommand 登录命令
type LoginCommand struct {
	Email    string
	Password string
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt int64      `json:"expires_at"`
	UserID    uint       `json:"user_id"`
	Role      authn.Role `json:"role"`
	Silos     []string   `json:"silos"`
}

// AuthCommandService 认证命令服务
type AuthCommandService struct {
	repo        domain.UserRepository
	sessionRepo domain.SessionRepository
	tokens      *authn.TokenManager
}

// NewAuthCommandService 创建认证命令服务实例，sessionRepo 可为 nil
func NewAuthCommandService(repo domain.UserRepository, sessionRepo domain.SessionRepository, tokens *authn.TokenManager) *AuthCommandService {
	return &AuthCommandService{
		repo:        repo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
	}
}

// Register 处理用户注册
func (s *AuthCommandService) Register(ctx context.Context, cmd RegisterCommand) (uint, error) {
	role := authn.RoleStaff
	if cmd.Role != "" {
		parsed, err := authn.ParseRole(cmd.Role)
		if err != nil {
			return 0, err
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *domain.User
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetByEmail(txCtx, cmd.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrEmailTaken
		}

		user = domain.NewUser(cmd.Email, string(hash), role, cmd.Silos)
		return s.repo.Save(txCtx, user)
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "User registered", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user.ID, nil
}

// Login 处理用户登录，成功时签发 JWT 并落一份会话
func (s *AuthCommandService) Login(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	user, err := s.repo.GetByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, err
	}

	if s.sessionRepo != nil {
		session := &domain.AuthSession{
			Token:     token,
			UserID:    user.ID,
			Email:     user.Email,
			Role:      user.Role,
			CreatedAt: time.Now(),
			ExpiresAt: time.Unix(expiresAt, 0),
		}
		if err := s.sessionRepo.Save(ctx, session); err != nil {
			// 会话只用于主动注销，落库失败不阻塞登录
			logger.Warn(ctx, "Failed to save session", "user_id", user.ID, "error", err)
		}
	}

	logger.Info(ctx, "User logged in", "user_id", user.ID, "role", user.Role)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Role:      user.Role,
		Silos:     user.Silos,
	}, nil
}

// Logout 删除会话
func (s *AuthCommandService) Logout(ctx context.Context, token string) error {
	if s.sessionRepo == nil {
		return nil
	}
	return s.sessionRepo.Delete(ctx, token)
}

// AssignSilo 为用户分配 silo，仅管理员可调用
func (s *AuthCommandService) AssignSilo(ctx context.Context, caller authn.Identity, userID uint, silo string) (*domain.User, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}

	var user *domain.User
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.repo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}
		user.AssignSilo(silo)
		return s.repo.Save(txCtx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Silo assigned", "user_id", userID, "silo_id", silo, "actor_id", caller.UserID)
	return user, nil
}

// RevokeSilo 收回用户的 silo 分配，仅管理员可调用
func (s *AuthCommandService) RevokeSilo(ctx context.Context, caller authn.Identity, userID uint, silo string) (*domain.User, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}

	var user *domain.User
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.repo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}
		user.RevokeSilo(silo)
		return s.repo.Save(txCtx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Silo revoked", "user_id", userID, "silo_id", silo, "actor_id", caller.UserID)
	return user, nil
}
