package middleware

import (
	"context"
	"time"

	user "Matcha/module/user/model"
	midsec "Matcha/middleware/security"
	"Matcha/tools/safe"

	"github.com/gin-gonic/gin"
)

type Toucher interface {
	Touch(ctx context.Context, uid user.UserID) error
}

// PresenceRefresh 任何已认证请求都刷新在线状态；异步执行，失败不影响请求
func PresenceRefresh(t Toucher, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(c *gin.Context) {
		if uid, ok := midsec.UserID(c); ok {
			safe.Go("presence-touch", func() {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				_ = t.Touch(ctx, uid)
			})
		}
		c.Next()
	}
}
