package chat

import (
	"encoding/json"
	"errors"
	"sync"

	user "Matcha/module/user/model"

	"github.com/gorilla/websocket"
)

// ===== 配置 =====

type ManagerConf struct {
	MaxPerUser int // 每用户最大连接数（<=0 不限制），超限淘汰最老连接
}

// ===== 数据结构 =====

// ConnManager 本进程内 userID -> 连接集合。
// 不变量：byUser 中存在某个 key 当且仅当其集合非空
type ConnManager struct {
	mu     sync.RWMutex
	byID   map[string]*WsConn                 // 主索引：connID -> conn
	byUser map[user.UserID]map[string]*WsConn // 辅助索引：userID -> (connID -> conn)

	conf ManagerConf
}

func NewConnManager(conf ManagerConf) *ConnManager {
	return &ConnManager{
		byID:   make(map[string]*WsConn),
		byUser: make(map[user.UserID]map[string]*WsConn),
		conf:   conf,
	}
}

// ===== 注册 / 移除 =====

// Register 登记连接；first 表示这是该用户当前唯一的连接
func (m *ConnManager) Register(c *WsConn) (first bool, err error) {
	if c == nil || c.ID == "" {
		return false, errors.New("conn/id empty")
	}
	if !c.UserID.Valid() {
		return false, errors.New("conn without user")
	}

	m.mu.Lock()
	if _, exists := m.byID[c.ID]; exists {
		m.mu.Unlock()
		return false, errors.New("conn id exists")
	}
	evicted := m.ensureRoomForUserLocked(c.UserID)

	set := m.byUser[c.UserID]
	if set == nil {
		set = make(map[string]*WsConn)
		m.byUser[c.UserID] = set
		first = true
	}
	set[c.ID] = c
	m.byID[c.ID] = c
	m.mu.Unlock()

	// 解锁后关闭
	for _, old := range evicted {
		old.CloseWith(websocket.ClosePolicyViolation, "Too many connections")
	}
	return first, nil
}

// Remove 移除连接；last 表示移除后该用户已无连接（key 已删除）。
// 已被淘汰或重复移除的连接返回 false
func (m *ConnManager) Remove(c *WsConn) (last bool) {
	if c == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.byID[c.ID]; !ok || cur != c {
		return false
	}
	delete(m.byID, c.ID)
	return m.detachLocked(c)
}

func (m *ConnManager) detachLocked(c *WsConn) (emptied bool) {
	set := m.byUser[c.UserID]
	if set == nil {
		return false
	}
	delete(set, c.ID)
	if len(set) == 0 {
		delete(m.byUser, c.UserID)
		return true
	}
	return false
}

// ===== 查询 =====

// Lookup 该用户此刻的全部连接（快照）
func (m *ConnManager) Lookup(uid user.UserID) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byUser[uid]
	if len(set) == 0 {
		return nil
	}
	out := make([]*WsConn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) IsConnected(uid user.UserID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUser[uid]
	return ok
}

// Count 连接总数
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Users 有连接的用户数
func (m *ConnManager) Users() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// ===== 推送 =====

// SendToUser 向该用户所有连接投递（不阻塞，慢连接丢弃），返回成功入队的连接数
func (m *ConnManager) SendToUser(uid user.UserID, data []byte) int {
	n := 0
	for _, c := range m.Lookup(uid) {
		if c.TrySend(data) {
			n++
		}
	}
	return n
}

// Push 编码一次后 SendToUser
func (m *ConnManager) Push(uid user.UserID, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return m.SendToUser(uid, data), nil
}

// CloseAll 关闭全部连接（进程退出）；连接由各自的读协程移除
func (m *ConnManager) CloseAll(code int, reason string) int {
	m.mu.RLock()
	all := make([]*WsConn, 0, len(m.byID))
	for _, c := range m.byID {
		all = append(all, c)
	}
	m.mu.RUnlock()

	for _, c := range all {
		c.CloseWith(code, reason)
	}
	return len(all)
}

// ===== 最大连接数/挤下线 =====

// 需要在持锁状态下调用（*_Locked）；返回被淘汰、尚未关闭的连接
func (m *ConnManager) ensureRoomForUserLocked(uid user.UserID) []*WsConn {
	if m.conf.MaxPerUser <= 0 {
		return nil
	}
	var evicted []*WsConn
	for len(m.byUser[uid]) >= m.conf.MaxPerUser {
		// 选择最老的一条淘汰（CreatedAt 更早）
		var oldest *WsConn
		for _, c := range m.byUser[uid] {
			if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
				oldest = c
			}
		}
		delete(m.byID, oldest.ID)
		m.detachLocked(oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}
