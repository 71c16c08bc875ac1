package safe

import (
	"runtime/debug"

	"Matcha/logger"

	"go.uber.org/zap"
)

// Go 启动一个带 recover 的 goroutine，panic 只记录日志，不拖垮进程
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover 用于 defer；name 标识出问题的协程
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("[safe] panic recovered",
			zap.String("goroutine", name),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
	}
}
