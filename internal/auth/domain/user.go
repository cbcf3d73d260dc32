// Package domain 包含后台用户、silo 分配与会话的领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/fundflow/backoffice/pkg/authn"
)

// 认证领域错误
var (
	// ErrEmailTaken 邮箱已被注册
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials 邮箱或密码错误，对外不区分具体原因
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
)

// User 后台用户聚合根。
// Silos 是用户被分配的 silo 集合，签发令牌时写入 silos 声明。
type User struct {
	ID           uint       `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         authn.Role `json:"role"`
	Silos        []string   `json:"silos"`
}

// NewUser 创建用户，默认角色为 staff
func NewUser(email, passwordHash string, role authn.Role, silos []string) *User {
	if role == "" {
		role = authn.RoleStaff
	}
	if silos == nil {
		silos = []string{}
	}
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Silos:        silos,
	}
}

// Identity 把用户映射为调用者身份
func (u *User) Identity() authn.Identity {
	return authn.Identity{
		UserID: u.ID,
		Role:   u.Role,
		Silos:  u.Silos,
	}
}

// AssignSilo 为用户分配 silo，已分配时为幂等空操作
func (u *User) AssignSilo(silo string) {
	for _, s := range u.Silos {
		if s == silo {
			return
		}
	}
	u.Silos = append(u.Silos, silo)
}

// RevokeSilo 收回用户的 silo 分配
func (u *User) RevokeSilo(silo string) {
	out := u.Silos[:0]
	for _, s := range u.Silos {
		if s != silo {
			out = append(out, s)
		}
	}
	u.Silos = out
}

// UserRepository 用户仓储接口
type UserRepository interface {
	// 保存用户
	Save(ctx context.Context, user *User) error
	// 按邮箱查找用户，不存在时返回 (nil, nil)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// 按 ID 查找用户，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id uint) (*User, error)
	// 在事务中执行 fn
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
