package chat

import (
	"encoding/json"
	"errors"
	"time"

	user "Matcha/module/user/model"
)

type FrameType string

// 入站
const (
	TypePing        FrameType = "ping"
	TypeMessage     FrameType = "message"
	TypeCheckOnline FrameType = "check_online_users"
)

// 出站
const (
	TypeWelcome      FrameType = "welcome"
	TypePong         FrameType = "pong"
	TypeAck          FrameType = "ack"
	TypeError        FrameType = "error"
	TypeOnlineResult FrameType = "online_status_result"
	TypeNotification FrameType = "notification"
)

// 错误帧文案，客户端按字符串匹配
var (
	ErrInvalidJSON = errors.New("Invalid JSON")
	ErrUnknownType = errors.New("Unknown type")
)

// Frame 入站帧：只有下面三种
type Frame interface {
	FrameType() FrameType
}

type PingFrame struct{}

type ChatFrame struct {
	To      user.UserID `json:"to"`
	Content string      `json:"content"`
}

type CheckOnlineFrame struct {
	UserIDs []user.UserID `json:"userIds"`
}

func (PingFrame) FrameType() FrameType        { return TypePing }
func (ChatFrame) FrameType() FrameType        { return TypeMessage }
func (CheckOnlineFrame) FrameType() FrameType { return TypeCheckOnline }

// ParseFrame 解析一条文本帧；返回 ErrInvalidJSON 或 ErrUnknownType
func ParseFrame(raw []byte) (Frame, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, ErrInvalidJSON
	}

	switch head.Type {
	case TypePing:
		return PingFrame{}, nil
	case TypeMessage:
		return parseChatFrame(raw)
	case TypeCheckOnline:
		var f CheckOnlineFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, ErrInvalidJSON
		}
		return f, nil
	default:
		return nil, ErrUnknownType
	}
}

// parseChatFrame to/content 类型不对时按缺失处理（只 ack 不转发），不算 JSON 错误
func parseChatFrame(raw []byte) (Frame, error) {
	var loose struct {
		To      json.RawMessage `json:"to"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, ErrInvalidJSON
	}
	var f ChatFrame
	if len(loose.To) > 0 {
		if err := json.Unmarshal(loose.To, &f.To); err != nil {
			f.To = 0
		}
	}
	if len(loose.Content) > 0 {
		if err := json.Unmarshal(loose.Content, &f.Content); err != nil {
			f.Content = ""
		}
	}
	return f, nil
}

// ---- 出站帧 ----

type WelcomeFrame struct {
	Type   FrameType   `json:"type"`
	UserID user.UserID `json:"userId"`
}

type PongFrame struct {
	Type FrameType `json:"type"`
}

type AckFrame struct {
	Type     FrameType `json:"type"`
	Received bool      `json:"received"`
}

type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

type OnlineResultFrame struct {
	Type   FrameType                   `json:"type"`
	Status map[user.UserID]user.Status `json:"status"`
}

// DeliverFrame 转发给接收方的聊天消息；Timestamp 为服务端毫秒时间
type DeliverFrame struct {
	Type      FrameType   `json:"type"`
	From      user.UserID `json:"from"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

type NotificationFrame struct {
	Type             FrameType `json:"type"`
	ID               int64     `json:"id,omitempty"`
	NotificationType string    `json:"notificationType"`
	Content          string    `json:"content"`
	Timestamp        int64     `json:"timestamp"`
}

func Welcome(uid user.UserID) WelcomeFrame { return WelcomeFrame{Type: TypeWelcome, UserID: uid} }

func Pong() PongFrame { return PongFrame{Type: TypePong} }

func Ack() AckFrame { return AckFrame{Type: TypeAck, Received: true} }

func Error(msg string) ErrorFrame { return ErrorFrame{Type: TypeError, Message: msg} }

func OnlineResult(status map[user.UserID]user.Status) OnlineResultFrame {
	if status == nil {
		status = map[user.UserID]user.Status{}
	}
	return OnlineResultFrame{Type: TypeOnlineResult, Status: status}
}

func Deliver(from user.UserID, content string, at time.Time) DeliverFrame {
	return DeliverFrame{Type: TypeMessage, From: from, Content: content, Timestamp: at.UnixMilli()}
}

func Notification(id int64, typ, content string, at time.Time) NotificationFrame {
	return NotificationFrame{
		Type:             TypeNotification,
		ID:               id,
		NotificationType: typ,
		Content:          content,
		Timestamp:        at.UnixMilli(),
	}
}
