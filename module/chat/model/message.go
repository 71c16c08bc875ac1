package model

import (
	"time"

	user "Matcha/module/user/model"
)

// Message messages 表一行（实时通道转发的聊天内容，尽力落库）
type Message struct {
	ID         int64       `json:"id"`
	SenderID   user.UserID `json:"sender_id"`
	ReceiverID user.UserID `json:"receiver_id"`
	Content    string      `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
}
