package natsx

import (
	"context"
	"fmt"

	"Matcha/logger"
	"Matcha/tools/errs"

	"go.uber.org/zap"
)

// Message 统一消息对象
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// Handler 业务处理函数
type Handler func(ctx context.Context, msg Message) error

// Middleware 中间件（日志、幂等、recover）
type Middleware func(Handler) Handler

// Chain 组合中间件，第一个在最外层
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover handler panic 转成错误
func Recover() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// LogErrors 处理失败只记日志
func LogErrors() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			err := next(ctx, msg)
			if err != nil {
				logger.Warn("[nats] handle failed",
					zap.String("subject", msg.Subject),
					zap.Int("bytes", len(msg.Data)),
					zap.String("err", fmt.Sprintf("%+v", err)),
				)
			}
			return err
		}
	}
}
