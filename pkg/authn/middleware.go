package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IdentityKey gin context 中身份的键名
const IdentityKey = "caller_identity"

type identityContextKey struct{}

// Middleware 鉴权中间件：解析 Bearer 凭证并把 Identity 放进请求上下文。
// 缺失凭证与非法凭证都返回 401，区分错误信息。
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingCredential.Error()})
			return
		}

		credential := strings.TrimPrefix(header, "Bearer ")
		if credential == header {
			// 非 Bearer 形式一律视为非法凭证
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredential.Error()})
			return
		}

		ident, err := tokens.Resolve(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(IdentityKey, ident)
		ctx := context.WithValue(c.Request.Context(), identityContextKey{}, ident)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// FromGin 从 gin context 取出调用者身份
func FromGin(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return Identity{}, false
	}
	ident, ok := v.(Identity)
	return ident, ok
}

// FromContext 从请求 context 取出调用者身份
func FromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(Identity)
	return ident, ok
}
