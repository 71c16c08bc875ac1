package notification

import (
	"context"
	"fmt"
	"net/http"

	note "Matcha/module/notification/model"
	user "Matcha/module/user/model"
	midsec "Matcha/middleware/security"
	"Matcha/service/notify"
	"Matcha/tools"
	"Matcha/tools/errs"

	"github.com/gin-gonic/gin"
)

type Service interface {
	Dispatch(ctx context.Context, uid user.UserID, typ, message string) (*notify.Result, error)
	List(ctx context.Context, uid user.UserID) ([]note.Notification, error)
	DeleteByType(ctx context.Context, uid user.UserID, typ string) (int64, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler { return &Handler{svc: svc} }

// List GET /notifications
func (h *Handler) List(c *gin.Context) {
	uid, ok := midsec.UserID(c)
	if !ok {
		tools.Fail(c, errs.ErrUnauthorized.Wrap())
		return
	}
	list, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		tools.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"count":         len(list),
	})
}

// DeleteByType DELETE /notifications/:type
func (h *Handler) DeleteByType(c *gin.Context) {
	uid, ok := midsec.UserID(c)
	if !ok {
		tools.Fail(c, errs.ErrUnauthorized.Wrap())
		return
	}
	typ := c.Param("type")
	n, err := h.svc.DeleteByType(c.Request.Context(), uid, typ)
	if err != nil {
		tools.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("Deleted %d notification(s) of type '%s'", n, typ),
		"deletedCount": n,
	})
}

type createReq struct {
	UserID  user.UserID `json:"userId"`
	Type    string      `json:"type"`
	Message string      `json:"message"`
}

// Create POST /internal/notifications（服务间调用）
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		tools.Fail(c, errs.ErrArgs.WrapMsg("bad body", "err", err))
		return
	}
	res, err := h.svc.Dispatch(c.Request.Context(), req.UserID, req.Type, req.Message)
	if err != nil && (res == nil || !errs.ErrServer.Is(err)) {
		tools.Fail(c, err)
		return
	}
	// 落库失败但已推送：202，调用方可决定是否重试
	status := http.StatusCreated
	if !res.Persisted {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"notification": res.Notification,
		"persisted":    res.Persisted,
		"delivered":    res.Delivered,
	})
}
