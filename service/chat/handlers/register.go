package handlers

import (
	"time"

	"Matcha/service/chat"
)

// Deps 构造全部帧处理器所需的依赖
type Deps struct {
	Forwarder       Forwarder
	Messages        MessageStore // nil = 不落库
	Presence        PresenceReader
	Message         MessageOptions
	MaxIDs          int
	PresenceTimeout time.Duration
}

// All 返回 ping / message / check_online_users 三个处理器
func All(d Deps) []chat.Handler {
	return []chat.Handler{
		NewPingHandler(),
		NewMessageHandler(d.Forwarder, d.Messages, d.Message),
		NewOnlineHandler(d.Presence, d.MaxIDs, d.PresenceTimeout),
	}
}
