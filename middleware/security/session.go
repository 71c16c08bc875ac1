package security

import (
	"net/http"

	user "Matcha/module/user/model"
	"Matcha/service/session"
	"Matcha/tools/errs"

	"github.com/gin-gonic/gin"
)

// ===== context key =====
// 后续 handler 统一用这几个 key 读取
const (
	CtxUserIDKey    = "userId"    // user.UserID
	CtxSessionKey   = "session"   // *session.Session
	CtxSessionIDKey = "sessionId" // string
	CtxServiceKey   = "service"   // string，服务间调用方
)

// SessionAuth 校验 connect.sid，成功后把用户写入 context；失败 401
func SessionAuth(resolver *session.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail(session.Reason(err)))
			return
		}
		if sid, err := resolver.SessionID(c.Request); err == nil {
			c.Set(CtxSessionIDKey, sid)
		}
		c.Set(CtxUserIDKey, sess.UserID)
		c.Set(CtxSessionKey, sess)
		c.Next()
	}
}

// UserID 取出已认证用户；未经过 SessionAuth 时返回 false
func UserID(c *gin.Context) (user.UserID, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0, false
	}
	uid, ok := v.(user.UserID)
	return uid, ok && uid.Valid()
}

func SessionID(c *gin.Context) string {
	return c.GetString(CtxSessionIDKey)
}
