package chat

import (
	"context"

	user "Matcha/module/user/model"
)

// Handler 处理一种入站帧；同一连接上的帧按到达顺序串行调用
type Handler interface {
	Type() FrameType
	Handle(ctx context.Context, f Frame, conn *WsConn) error
}

// PresenceHook 连接生命周期回调：用户第一条连接建立 / 最后一条连接关闭
type PresenceHook interface {
	Connected(ctx context.Context, uid user.UserID)
	Disconnected(ctx context.Context, uid user.UserID)
}
