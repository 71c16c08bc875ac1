package handlers

import (
	"context"
	"time"

	user "Matcha/module/user/model"
	"Matcha/service/chat"
)

const (
	msgTooManyIDs          = "Too many userIds"
	msgPresenceUnavailable = "Presence unavailable"
)

// PresenceReader 读持久化在线状态，不看本进程的连接
type PresenceReader interface {
	Statuses(ctx context.Context, ids []user.UserID) (map[user.UserID]user.Status, error)
}

type OnlineHandler struct {
	presence PresenceReader
	maxIDs   int
	timeout  time.Duration
}

func NewOnlineHandler(presence PresenceReader, maxIDs int, timeout time.Duration) chat.Handler {
	if maxIDs <= 0 {
		maxIDs = 200
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &OnlineHandler{presence: presence, maxIDs: maxIDs, timeout: timeout}
}

func (h *OnlineHandler) Type() chat.FrameType { return chat.TypeCheckOnline }

func (h *OnlineHandler) Handle(ctx context.Context, f chat.Frame, conn *chat.WsConn) error {
	cf, _ := f.(chat.CheckOnlineFrame)
	if len(cf.UserIDs) > h.maxIDs {
		return conn.SendFrame(ctx, chat.Error(msgTooManyIDs))
	}

	qctx, cancel := context.WithTimeout(ctx, h.timeout)
	status, err := h.presence.Statuses(qctx, dedupe(cf.UserIDs))
	cancel()
	if err != nil {
		return conn.SendFrame(ctx, chat.Error(msgPresenceUnavailable))
	}
	return conn.SendFrame(ctx, chat.OnlineResult(status))
}

func dedupe(ids []user.UserID) []user.UserID {
	seen := make(map[user.UserID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
