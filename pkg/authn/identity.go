// Package authn 提供调用者身份模型、JWT 令牌签发/解析与 silo 访问校验。
// 全部服务共用这一套实现，避免多份鉴权中间件并存。
package authn

import (
	"errors"
	"fmt"
)

// Role 后台用户角色
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleMarketing Role = "marketing"
	RoleLender    Role = "lender"
	RoleReferrer  Role = "referrer"
)

// ParseRole 解析角色字符串
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleStaff, RoleMarketing, RoleLender, RoleReferrer:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// 鉴权错误
var (
	// ErrMissingCredential 请求未携带凭证
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential 凭证格式错误、签名不合法或已过期
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrForbidden 调用者无权访问目标 silo
	ErrForbidden = errors.New("forbidden: silo access denied")
)

// Identity 调用者身份，由凭证解析得到，生命周期为单次请求，解析后不可变
type Identity struct {
	UserID uint     `json:"user_id"`
	Role   Role     `json:"role"`
	Silos  []string `json:"silos"`
}

// HasSilo 判断身份是否被分配了指定 silo
func (id Identity) HasSilo(silo string) bool {
	for _, s := range id.Silos {
		if s == silo {
			return true
		}
	}
	return false
}

// SiloPolicy silo 访问策略。
// 管理员绕过 silo 限制是显式的产品决策，而非默认行为，因此做成可配置项。
type SiloPolicy struct {
	AdminBypass bool
}

// CheckAccess 校验调用者对目标 silo 的访问权限。
// 任何读取 silo 数据或变更阶段的操作都必须先通过此校验。
func (p SiloPolicy) CheckAccess(caller Identity, targetSilo string) error {
	if p.AdminBypass && caller.Role == RoleAdmin {
		return nil
	}
	if caller.HasSilo(targetSilo) {
		return nil
	}
	return ErrForbidden
}
