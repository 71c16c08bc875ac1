package presence

import (
	"context"
	"time"

	user "Matcha/module/user/model"
	"Matcha/logger"

	"go.uber.org/zap"
)

// Store users 表在线状态读写
type Store interface {
	SetPresence(ctx context.Context, id user.UserID, online bool, at time.Time) error
	Presence(ctx context.Context, ids []user.UserID) (map[user.UserID]user.PresenceRecord, error)
}

type Options struct {
	WriteTimeout       time.Duration
	OfflineOnLastClose bool
	Now                func() time.Time
}

// Tracker 持久化在线状态的唯一入口；写失败只记日志，不影响调用方
type Tracker struct {
	store Store
	opts  Options
}

func NewTracker(store Store, opts Options) *Tracker {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{store: store, opts: opts}
}

// Connected 用户第一条连接建立
func (t *Tracker) Connected(ctx context.Context, id user.UserID) {
	_ = t.write(ctx, id, true, "connect")
}

// Disconnected 用户最后一条连接关闭
func (t *Tracker) Disconnected(ctx context.Context, id user.UserID) {
	if !t.opts.OfflineOnLastClose {
		return
	}
	_ = t.write(ctx, id, false, "disconnect")
}

// Touch REST 心跳 / 任意已认证请求
func (t *Tracker) Touch(ctx context.Context, id user.UserID) error {
	return t.write(ctx, id, true, "heartbeat")
}

// SetOffline 登出
func (t *Tracker) SetOffline(ctx context.Context, id user.UserID) error {
	return t.write(ctx, id, false, "logout")
}

// Statuses 读持久化状态；没有记录的 ID 视为离线
func (t *Tracker) Statuses(ctx context.Context, ids []user.UserID) (map[user.UserID]user.Status, error) {
	out := make(map[user.UserID]user.Status, len(ids))
	for _, id := range ids {
		out[id] = user.StatusOffline
	}
	if len(ids) == 0 {
		return out, nil
	}

	recs, err := t.store.Presence(ctx, ids)
	if err != nil {
		logger.Warn("[presence] read failed", zap.Int("ids", len(ids)), zap.Error(err))
		return nil, err
	}
	for id, rec := range recs {
		if _, asked := out[id]; asked {
			out[id] = rec.Status()
		}
	}
	return out, nil
}

func (t *Tracker) write(ctx context.Context, id user.UserID, online bool, reason string) error {
	if !id.Valid() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()

	if err := t.store.SetPresence(ctx, id, online, t.opts.Now()); err != nil {
		logger.Warn("[presence] write failed",
			zap.Int64("user_id", int64(id)),
			zap.Bool("online", online),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return err
	}
	logger.Debug("[presence] updated",
		zap.Int64("user_id", int64(id)),
		zap.Bool("online", online),
		zap.String("reason", reason),
	)
	return nil
}
