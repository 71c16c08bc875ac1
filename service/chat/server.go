package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	user "Matcha/module/user/model"
	"Matcha/logger"
	"Matcha/tools/ids"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	SendQueue       int
	MaxMessageBytes int64
	FrameRate       float64 // 每连接每秒入站帧数，<=0 不限流
	FrameBurst      int64
	AllowedOrigins  []string // 空 = 不校验 Origin
}

func (o *Options) norm() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 5 / 2
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = 100
	}
}

// Server 持有注册表与分发器，处理 /ws 连接
type Server struct {
	opts     Options
	connMgr  *ConnManager
	disp     *Dispatcher
	auth     *Authenticator
	presence PresenceHook
	ids      *ids.Generator
	upgrader websocket.Upgrader
	now      func() time.Time

	locks *userLocks

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex // 保护 closing 与 wg.Add
	closing bool
	wg      sync.WaitGroup
}

// NewServer presence 可以为 nil（不维护在线状态）
func NewServer(opts Options, connMgr *ConnManager, disp *Dispatcher, auth *Authenticator, presence PresenceHook, gen *ids.Generator) *Server {
	opts.norm()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:     opts,
		connMgr:  connMgr,
		disp:     disp,
		auth:     auth,
		presence: presence,
		ids:      gen,
		now:      time.Now,
		locks:    newUserLocks(),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) ConnMgr() *ConnManager { return s.connMgr }

// track 登记一个连接协程；Shutdown 开始后返回 false
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// Shutdown 关闭全部连接并等待连接协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	n := s.connMgr.CloseAll(websocket.CloseGoingAway, "Server shutting down")
	logger.Info("[WS] shutting down", zap.Int("connections", n))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ===== 在线状态切换 =====

// markOnline / markOffline 按用户串行，并以注册表当前状态为准：
// 慢的离线写入不会覆盖随后重连写入的在线
func (s *Server) markOnline(ctx context.Context, uid user.UserID) {
	unlock := s.locks.lock(uid)
	defer unlock()
	if s.connMgr.IsConnected(uid) {
		s.presence.Connected(ctx, uid)
	}
}

func (s *Server) markOffline(ctx context.Context, uid user.UserID) {
	unlock := s.locks.lock(uid)
	defer unlock()
	if !s.connMgr.IsConnected(uid) {
		s.presence.Disconnected(ctx, uid)
	}
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// userLocks 按用户的互斥锁，无人持有时回收
type userLocks struct {
	mu    sync.Mutex
	locks map[user.UserID]*userLock
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[user.UserID]*userLock)}
}

func (l *userLocks) lock(uid user.UserID) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[uid]
	if !ok {
		ul = &userLock{}
		l.locks[uid] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		if ul.refs--; ul.refs == 0 {
			delete(l.locks, uid)
		}
		l.mu.Unlock()
	}
}
