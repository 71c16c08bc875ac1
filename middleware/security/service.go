package security

import (
	"net/http"
	"strings"

	"Matcha/tools/errs"
	"Matcha/tools/security"

	"github.com/gin-gonic/gin"
)

// ServiceAuth 服务间调用：Authorization: Bearer <jwt>，且 scope 含 required
func ServiceAuth(opts security.Options, required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("missing bearer token"))
			return
		}
		claims, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("invalid token"))
			return
		}
		if required != "" && !claims.HasScope(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, errs.ErrForbidden.WithDetail("missing scope "+required))
			return
		}
		c.Set(CtxServiceKey, claims.Subject)
		c.Next()
	}
}

// 兼容 Authorization: Bearer xxx（大小写不敏感）
func bearer(authz string) string {
	authz = strings.TrimSpace(authz)
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
