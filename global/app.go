package global

import (
	"context"
	"errors"
	"net/http"

	"Matcha/global/config"
	"Matcha/logger"
	"Matcha/service/chat"
	"Matcha/service/presence"
	"Matcha/service/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

type appDeps struct {
	dig.In

	Cfg    *config.AppConfig
	Engine *gin.Engine
	WS     *chat.Server
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Reaper *presence.Reaper
	NATS   *NATSIngress
}

// App 进程生命周期：HTTP 服务 + 后台任务
type App struct {
	d   appDeps
	srv *http.Server
}

// Build 从配置构建整个进程
func Build(cfg *config.AppConfig) (*App, error) {
	c, err := NewContainer(cfg)
	if err != nil {
		return nil, err
	}
	var app *App
	err = c.Invoke(func(d appDeps) {
		app = &App{
			d:   d,
			srv: &http.Server{Addr: d.Cfg.Server.Addr, Handler: d.Engine},
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return app, nil
}

// Run 阻塞直到 ctx 取消或 HTTP 服务出错，然后按顺序关闭
func (a *App) Run(ctx context.Context) error {
	if a.d.Reaper != nil {
		a.d.Reaper.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[app] listening", zap.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.d.Cfg.Server.ShutdownTimeout)
	defer cancel()

	// 先断开长连接，再停 HTTP
	if err := a.d.WS.Shutdown(ctx); err != nil {
		logger.Warn("[app] ws shutdown", zap.Error(err))
	}
	if err := a.srv.Shutdown(ctx); err != nil {
		logger.Warn("[app] http shutdown", zap.Error(err))
	}
	if a.d.Reaper != nil {
		a.d.Reaper.Stop()
	}
	a.d.NATS.Close()
	a.d.Pool.Close()
	if a.d.Redis != nil {
		_ = a.d.Redis.Close()
	}
	logger.Info("[app] stopped")
}

// Migrate 只建库表，不启动服务
func Migrate(ctx context.Context, cfg *config.AppConfig) error {
	pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.PostgresDSN(), MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return postgres.Migrate(ctx, pool)
}
