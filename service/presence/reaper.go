package presence

import (
	"context"
	"fmt"
	"time"

	"Matcha/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type StaleStore interface {
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
}

// Reaper 定时把长时间没有心跳的用户置为离线（stale_after > 0 时启用）
type Reaper struct {
	store      StaleStore
	staleAfter time.Duration
	timeout    time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

func NewReaper(store StaleStore, staleAfter time.Duration, schedule string) (*Reaper, error) {
	if staleAfter <= 0 {
		return nil, fmt.Errorf("presence: stale_after must be positive, got %s", staleAfter)
	}
	r := &Reaper{
		store:      store,
		staleAfter: staleAfter,
		timeout:    30 * time.Second,
		cron:       cron.New(),
		now:        time.Now,
	}
	if _, err := r.cron.AddFunc(schedule, func() { _, _ = r.ReapOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("presence: bad reap schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Reaper) Start() { r.cron.Start() }

// Stop 等待正在执行的任务结束
func (r *Reaper) Stop() { <-r.cron.Stop().Done() }

func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	before := r.now().Add(-r.staleAfter)
	n, err := r.store.MarkStaleOffline(ctx, before)
	if err != nil {
		logger.Warn("[presence] reap failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		logger.Info("[presence] reaped stale users", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}
