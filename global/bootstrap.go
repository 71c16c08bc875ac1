package global

import (
	"context"
	"time"

	"Matcha/global/config"
	"Matcha/logger"
	chatmod "Matcha/module/chat"
	notemod "Matcha/module/notification"
	usermod "Matcha/module/user"
	"Matcha/service/chat"
	"Matcha/service/chat/handlers"
	"Matcha/service/natsx"
	"Matcha/service/notify"
	"Matcha/service/presence"
	"Matcha/service/session"
	"Matcha/service/storage/postgres"
	redisx "Matcha/service/storage/redis"
	"Matcha/tools/ids"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	idemPrefix     = "matcha:notify:idem:"
)

// NewContainer 注册全部构造函数；真正的建连发生在第一次 Invoke 时
func NewContainer(cfg *config.AppConfig) (*dig.Container, error) {
	c := dig.New()

	provides := []struct {
		ctor any
		opts []dig.ProvideOption
	}{
		{ctor: func() *config.AppConfig { return cfg }},
		{ctor: NewPostgres},
		{ctor: func(p *pgxpool.Pool) postgres.Querier { return p }},
		{ctor: postgres.NewPresenceStore, opts: []dig.ProvideOption{dig.As(new(presence.Store), new(presence.StaleStore))}},
		{ctor: postgres.NewNotificationStore, opts: []dig.ProvideOption{dig.As(new(notify.Store))}},
		{ctor: postgres.NewMessageStore},
		{ctor: NewRedis},
		{ctor: NewSessionStore},
		{ctor: NewResolver},
		{ctor: func(cfg *config.AppConfig) *ids.Generator { return ids.NewGenerator(cfg.NodeID) }},
		{ctor: func(cfg *config.AppConfig) *chat.ConnManager {
			return chat.NewConnManager(chat.ManagerConf{MaxPerUser: cfg.WS.MaxPerUser})
		}},
		{ctor: NewTracker},
		{ctor: NewReaper},
		{ctor: NewFrameDispatcher},
		{ctor: NewChatServer},
		{ctor: func(s notify.Store, m *chat.ConnManager) *notify.Dispatcher { return notify.NewDispatcher(s, m) }},
		{ctor: NewNATS},
		{ctor: func(t *presence.Tracker, r *session.Resolver) *usermod.Handler { return usermod.NewHandler(t, r) }},
		{ctor: func(d *notify.Dispatcher) *notemod.Handler { return notemod.NewHandler(d) }},
		{ctor: func(cfg *config.AppConfig, s *postgres.MessageStore) *chatmod.Handler {
			return chatmod.NewHandler(s, cfg.Chat.HistoryLimit)
		}},
		{ctor: NewRouter},
	}
	for _, p := range provides {
		if err := c.Provide(p.ctor, p.opts...); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func NewPostgres(cfg *config.AppConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return postgres.Connect(ctx, postgres.Config{DSN: cfg.PostgresDSN(), MaxConns: cfg.Postgres.MaxConns})
}

// NewRedis dev 模式下不连 Redis，返回 nil
func NewRedis(cfg *config.AppConfig) (*redis.Client, error) {
	if cfg.Dev {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return redisx.NewClient(ctx, redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
}

func NewSessionStore(cfg *config.AppConfig, rdb *redis.Client) session.Store {
	if rdb == nil {
		logger.Warn("[boot] dev mode: sessions kept in memory")
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(rdb, cfg.Session.KeyPrefix)
}

func NewResolver(cfg *config.AppConfig, store session.Store) *session.Resolver {
	return session.NewResolver(store, cfg.Session.CookieName, cfg.Session.Secrets, cfg.Session.LookupTimeout)
}

func NewTracker(cfg *config.AppConfig, store presence.Store) *presence.Tracker {
	return presence.NewTracker(store, presence.Options{
		WriteTimeout:       cfg.Presence.WriteTimeout,
		OfflineOnLastClose: cfg.Presence.OfflineOnLastClose,
	})
}

// NewReaper presence.stale_after 为 0 时不启用，返回 nil
func NewReaper(cfg *config.AppConfig, store presence.StaleStore) (*presence.Reaper, error) {
	if cfg.Presence.StaleAfter <= 0 {
		return nil, nil
	}
	return presence.NewReaper(store, cfg.Presence.StaleAfter, cfg.Presence.ReapSchedule)
}

func NewFrameDispatcher(cfg *config.AppConfig, mgr *chat.ConnManager, tracker *presence.Tracker, msgs *postgres.MessageStore) *chat.Dispatcher {
	var store handlers.MessageStore
	if cfg.Chat.PersistMessages {
		store = msgs
	}
	return chat.NewDispatcher(handlers.All(handlers.Deps{
		Forwarder: mgr,
		Messages:  store,
		Presence:  tracker,
		Message: handlers.MessageOptions{
			MaxContentBytes: cfg.Chat.MaxContentBytes,
			SaveTimeout:     cfg.Presence.WriteTimeout,
		},
		MaxIDs:          cfg.WS.MaxPresenceQuery,
		PresenceTimeout: cfg.Session.LookupTimeout,
	})...)
}

func NewChatServer(cfg *config.AppConfig, mgr *chat.ConnManager, disp *chat.Dispatcher, resolver *session.Resolver,
	tracker *presence.Tracker, gen *ids.Generator) *chat.Server {
	return chat.NewServer(chat.Options{
		PingInterval:    cfg.WS.PingInterval,
		PongWait:        cfg.WS.PongWait,
		WriteWait:       cfg.WS.WriteWait,
		SendQueue:       cfg.WS.SendQueue,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		FrameRate:       cfg.WS.FrameRate,
		FrameBurst:      cfg.WS.FrameBurst,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, mgr, disp, chat.NewAuthenticator(resolver, cfg.WS.WriteWait), tracker, gen)
}

// NATSIngress 通知事件入口；未启用时 Client 为 nil
type NATSIngress struct {
	Client *natsx.Client
	mem    *natsx.MemIdem
}

func (n *NATSIngress) Close() {
	if n == nil || n.Client == nil {
		return
	}
	if err := n.Client.Close(); err != nil {
		logger.Warn("[boot] nats close", zap.Error(err))
	}
	if n.mem != nil {
		n.mem.Close()
	}
}

// NewNATS notify.nats.enabled 时连接并订阅通知事件
func NewNATS(cfg *config.AppConfig, d *notify.Dispatcher, rdb *redis.Client) (*NATSIngress, error) {
	nc := cfg.Notify.NATS
	if !nc.Enabled {
		return &NATSIngress{}, nil
	}
	client, err := natsx.NewClient(natsx.Config{
		Servers:       nc.Servers,
		Name:          nc.Name,
		User:          nc.User,
		Password:      nc.Password,
		ReconnectWait: nc.ReconnectWait,
		Timeout:       nc.Timeout,
	})
	if err != nil {
		return nil, err
	}

	in := &NATSIngress{Client: client}
	var idem natsx.IdemStore
	if rdb != nil {
		idem = natsx.NewRedisIdem(rdb, idemPrefix)
	} else {
		in.mem = natsx.NewMemIdem(10 * time.Minute)
		idem = in.mem
	}
	if err := notify.NewIngress(d).Subscribe(client, nc.Subject, nc.Queue, idem); err != nil {
		in.Close()
		return nil, err
	}
	logger.Info("[boot] nats ingress subscribed", zap.String("subject", nc.Subject), zap.String("queue", nc.Queue))
	return in, nil
}
