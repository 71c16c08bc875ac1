package model

import (
	"time"

	user "Matcha/module/user/model"
)

// Notification notifications 表一行；只增、按 (user_id, type) 批量删，不做原地更新
type Notification struct {
	ID        int64       `json:"id"`
	UserID    user.UserID `json:"-"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

const MaxTypeLen = 64
