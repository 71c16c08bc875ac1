package handlers

import (
	"context"
	"time"

	msgmodel "Matcha/module/chat/model"
	user "Matcha/module/user/model"
	"Matcha/logger"
	"Matcha/service/chat"

	"go.uber.org/zap"
)

// Forwarder *chat.ConnManager 实现
type Forwarder interface {
	Push(uid user.UserID, v any) (int, error)
}

// MessageStore 聊天记录落库（可选）
type MessageStore interface {
	Save(ctx context.Context, m *msgmodel.Message) error
}

type MessageOptions struct {
	MaxContentBytes int           // <=0 不限制
	SaveTimeout     time.Duration // 落库超时
	Now             func() time.Time
}

type MessageHandler struct {
	fwd   Forwarder
	store MessageStore
	opts  MessageOptions
}

// NewMessageHandler store 为 nil 时不落库
func NewMessageHandler(fwd Forwarder, store MessageStore, opts MessageOptions) chat.Handler {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MessageHandler{fwd: fwd, store: store, opts: opts}
}

func (h *MessageHandler) Type() chat.FrameType { return chat.TypeMessage }

// Handle 先回 ack（只表示服务端已收到），再尽力转发；不排队不重试
func (h *MessageHandler) Handle(ctx context.Context, f chat.Frame, conn *chat.WsConn) error {
	if err := conn.SendFrame(ctx, chat.Ack()); err != nil {
		return err
	}

	cf, ok := f.(chat.ChatFrame)
	if !ok || !cf.To.Valid() || cf.Content == "" {
		return nil
	}
	if h.opts.MaxContentBytes > 0 && len(cf.Content) > h.opts.MaxContentBytes {
		logger.Info("[chat] content too long, not forwarded",
			zap.Int64("from", int64(conn.UserID)),
			zap.Int64("to", int64(cf.To)),
			zap.Int("bytes", len(cf.Content)),
		)
		return nil
	}

	now := h.opts.Now()
	n, err := h.fwd.Push(cf.To, chat.Deliver(conn.UserID, cf.Content, now))
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Debug("[chat] recipient not connected",
			zap.Int64("from", int64(conn.UserID)),
			zap.Int64("to", int64(cf.To)),
		)
	}

	h.save(ctx, conn.UserID, cf, now)
	return nil
}

func (h *MessageHandler) save(ctx context.Context, from user.UserID, cf chat.ChatFrame, at time.Time) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.opts.SaveTimeout)
	defer cancel()

	m := &msgmodel.Message{SenderID: from, ReceiverID: cf.To, Content: cf.Content, Timestamp: at}
	if err := h.store.Save(ctx, m); err != nil {
		logger.Warn("[chat] save message failed",
			zap.Int64("from", int64(from)),
			zap.Int64("to", int64(cf.To)),
			zap.Error(err),
		)
	}
}
