package chat

import (
	"context"
	"net/http"

	msgmodel "Matcha/module/chat/model"
	user "Matcha/module/user/model"
	midsec "Matcha/middleware/security"
	"Matcha/tools"
	"Matcha/tools/errs"

	"github.com/gin-gonic/gin"
)

const maxHistory = 200

type HistoryStore interface {
	Conversation(ctx context.Context, a, b user.UserID, limit int) ([]msgmodel.Message, error)
}

type Handler struct {
	store        HistoryStore
	defaultLimit int
}

func NewHandler(store HistoryStore, defaultLimit int) *Handler {
	if defaultLimit <= 0 || defaultLimit > maxHistory {
		defaultLimit = 50
	}
	return &Handler{store: store, defaultLimit: defaultLimit}
}

// History GET /chat/messages/:peerId?limit=N 两人之间的消息，新的在前
func (h *Handler) History(c *gin.Context) {
	uid, ok := midsec.UserID(c)
	if !ok {
		tools.Fail(c, errs.ErrUnauthorized.Wrap())
		return
	}
	peer, err := user.ParseUserID(c.Param("peerId"))
	if err != nil {
		tools.Fail(c, errs.ErrArgs.WrapMsg("invalid peerId"))
		return
	}
	limit := tools.QueryInt(c, "limit", h.defaultLimit, maxHistory)

	list, err := h.store.Conversation(c.Request.Context(), uid, peer, limit)
	if err != nil {
		tools.Fail(c, errs.ErrServer.WrapMsg("load conversation", "err", err))
		return
	}
	if list == nil {
		list = []msgmodel.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": list,
		"count":    len(list),
	})
}
