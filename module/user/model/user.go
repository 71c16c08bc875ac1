package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserID users.id；前端有时把它当字符串发，两种写法都接受
type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id UserID) Valid() bool { return id > 0 }

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(b)), 10, 64)
	if err != nil {
		return fmt.Errorf("user id %s: not an integer", b)
	}
	*id = UserID(n)
	return nil
}

func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return UserID(n), nil
}

// Status 对外展示的在线状态
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// PresenceRecord users 表中的 is_online / last_online 两列
type PresenceRecord struct {
	UserID     UserID     `json:"userId"`
	IsOnline   bool       `json:"isOnline"`
	LastOnline *time.Time `json:"lastOnline,omitempty"`
}

func (p PresenceRecord) Status() Status {
	if p.IsOnline {
		return StatusOnline
	}
	return StatusOffline
}
