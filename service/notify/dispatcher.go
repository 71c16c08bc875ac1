package notify

import (
	"context"
	"strings"
	"time"

	note "Matcha/module/notification/model"
	user "Matcha/module/user/model"
	"Matcha/logger"
	"Matcha/service/chat"
	"Matcha/tools/errs"

	"go.uber.org/zap"
)

type Store interface {
	Insert(ctx context.Context, n *note.Notification) error
	ListByUser(ctx context.Context, uid user.UserID) ([]note.Notification, error)
	DeleteByType(ctx context.Context, uid user.UserID, typ string) (int64, error)
}

// Pusher *chat.ConnManager 实现
type Pusher interface {
	Push(uid user.UserID, v any) (int, error)
}

// Result Delivered 为收到推送的连接数，0 表示用户当前不在线（只能靠 GET /notifications 拉取）
type Result struct {
	Notification note.Notification
	Persisted    bool
	Delivered    int
}

type Dispatcher struct {
	store   Store
	pusher  Pusher
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(store Store, pusher Pusher) *Dispatcher {
	return &Dispatcher{store: store, pusher: pusher, timeout: 3 * time.Second, now: time.Now}
}

// Dispatch 先落库，再推送给该用户所有在线连接。
// 落库失败时仍然推送，错误返回给调用方
func (d *Dispatcher) Dispatch(ctx context.Context, uid user.UserID, typ, message string) (*Result, error) {
	typ = strings.TrimSpace(typ)
	switch {
	case !uid.Valid():
		return nil, errs.ErrArgs.WrapMsg("invalid userId", "userId", uid)
	case typ == "" || len(typ) > note.MaxTypeLen:
		return nil, errs.ErrArgs.WrapMsg("invalid type", "type", typ)
	case message == "":
		return nil, errs.ErrArgs.WrapMsg("empty message")
	}

	n := note.Notification{UserID: uid, Type: typ, Message: message, CreatedAt: d.now()}
	res := &Result{}

	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	persistErr := d.store.Insert(sctx, &n)
	cancel()
	if persistErr != nil {
		logger.Warn("[notify] persist failed",
			zap.Int64("user_id", int64(uid)),
			zap.String("type", typ),
			zap.Error(persistErr),
		)
		persistErr = errs.ErrServer.WrapMsg("persist notification", "err", persistErr)
	} else {
		res.Persisted = true
	}
	res.Notification = n

	delivered, err := d.pusher.Push(uid, chat.Notification(n.ID, n.Type, n.Message, n.CreatedAt))
	if err != nil {
		logger.Warn("[notify] push failed", zap.Int64("user_id", int64(uid)), zap.Error(err))
	}
	res.Delivered = delivered

	logger.Debug("[notify] dispatched",
		zap.Int64("user_id", int64(uid)),
		zap.String("type", typ),
		zap.Int64("id", n.ID),
		zap.Int("delivered", delivered),
	)
	return res, persistErr
}

// List 该用户全部通知，新的在前
func (d *Dispatcher) List(ctx context.Context, uid user.UserID) ([]note.Notification, error) {
	list, err := d.store.ListByUser(ctx, uid)
	if err != nil {
		return nil, errs.ErrServer.WrapMsg("list notifications", "err", err)
	}
	if list == nil {
		list = []note.Notification{}
	}
	return list, nil
}

// DeleteByType 批量删除该用户某类通知；已推送的帧不受影响
func (d *Dispatcher) DeleteByType(ctx context.Context, uid user.UserID, typ string) (int64, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" || len(typ) > note.MaxTypeLen {
		return 0, errs.ErrArgs.WrapMsg("invalid type", "type", typ)
	}
	n, err := d.store.DeleteByType(ctx, uid, typ)
	if err != nil {
		return 0, errs.ErrServer.WrapMsg("delete notifications", "err", err)
	}
	return n, nil
}
