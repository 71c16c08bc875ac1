package handlers

import (
	"context"

	"Matcha/service/chat"
)

type PingHandler struct{}

func NewPingHandler() chat.Handler { return &PingHandler{} }

func (h *PingHandler) Type() chat.FrameType { return chat.TypePing }

// Handle 只回 pong，没有其他副作用
func (h *PingHandler) Handle(ctx context.Context, _ chat.Frame, conn *chat.WsConn) error {
	return conn.SendFrame(ctx, chat.Pong())
}
