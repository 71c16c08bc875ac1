package session

import (
	"context"
	"errors"
	"sync"

	user "Matcha/module/user/model"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("session: not found")

// Session express-session 记录中本服务关心的部分；只读
type Session struct {
	ID       string      `json:"-"`
	UserID   user.UserID `json:"userId"`
	Username string      `json:"username"`
}

// Store 外部会话存储；实现必须并发安全
type Store interface {
	Get(ctx context.Context, sid string) (*Session, error)
	Destroy(ctx context.Context, sid string) error
}

// MemoryStore 测试 / dev 模式使用
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Put(sid string, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = sid
	m.sessions[sid] = s
}

func (m *MemoryStore) Get(ctx context.Context, sid string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	if !ok || !s.UserID.Valid() {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Destroy(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}
