package user

import (
	"context"
	"net/http"

	user "Matcha/module/user/model"
	midsec "Matcha/middleware/security"
	"Matcha/service/session"
	"Matcha/tools"
	"Matcha/tools/errs"

	"github.com/gin-gonic/gin"
)

type Presence interface {
	Touch(ctx context.Context, uid user.UserID) error
	SetOffline(ctx context.Context, uid user.UserID) error
}

type Handler struct {
	presence Presence
	resolver *session.Resolver
}

func NewHandler(presence Presence, resolver *session.Resolver) *Handler {
	return &Handler{presence: presence, resolver: resolver}
}

// Heartbeat POST /heartbeat：刷新在线状态，写失败也返回 204
func (h *Handler) Heartbeat(c *gin.Context) {
	uid, ok := midsec.UserID(c)
	if !ok {
		tools.Fail(c, errs.ErrUnauthorized.Wrap())
		return
	}
	_ = h.presence.Touch(c.Request.Context(), uid)
	c.Status(http.StatusNoContent)
}

// Logout POST /auth/logout：置离线、销毁会话、清 cookie；未登录也算成功
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := h.resolver.Resolve(ctx, c.Request)
	if err == nil {
		_ = h.presence.SetOffline(ctx, sess.UserID)
		sid, _ := h.resolver.SessionID(c.Request)
		if derr := h.resolver.Store().Destroy(ctx, sid); derr != nil {
			tools.Fail(c, errs.ErrServer.WrapMsg("destroy session", "err", derr))
			return
		}
	}
	c.SetCookie(h.resolver.CookieName(), "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/"})
}
