package authn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig 令牌配置
type TokenConfig struct {
	Secret   string
	Issuer   string
	TTLHours int
}

// TokenManager 负责 JWT 的签发与解析。
// 解析只做声明到 Identity 的映射，密码学校验交给 jwt 库。
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(cfg TokenConfig) *TokenManager {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
	}
}

// Issue 为给定身份签发令牌，返回令牌串与过期时间戳
func (m *TokenManager) Issue(ident Identity) (string, int64, error) {
	exp := time.Now().Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     m.issuer,
		"user_id": float64(ident.UserID),
		"role":    string(ident.Role),
		"silos":   ident.Silos,
		"iat":     time.Now().Unix(),
		"exp":     exp.Unix(),
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, exp.Unix(), nil
}

// Resolve 将不透明凭证解析为调用者身份。
// 空凭证返回 ErrMissingCredential；格式错误、签名不合法或过期返回 ErrInvalidCredential。
// silos 声明缺失时默认映射为空集合。
func (m *TokenManager) Resolve(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrMissingCredential
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: missing user_id claim", ErrInvalidCredential)
	}

	roleStr, _ := claims["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	silos := []string{}
	if raw, ok := claims["silos"].([]interface{}); ok {
		for _, s := range raw {
			if silo, ok := s.(string); ok && silo != "" {
				silos = append(silos, silo)
			}
		}
	}

	return Identity{
		UserID: uint(userID),
		Role:   role,
		Silos:  silos,
	}, nil
}
