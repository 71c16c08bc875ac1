package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MATCHA"

// AppConfig 进程全部配置；来源：YAML 文件 + MATCHA_* 环境变量 + 兼容旧部署的环境变量
type AppConfig struct {
	NodeID   int64          `mapstructure:"node_id"` // 雪花节点号，参与连接ID生成
	Dev      bool           `mapstructure:"dev"`     // 开发模式：内存 session 存储
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	WS       WSConfig       `mapstructure:"ws"`
	Presence PresenceConfig `mapstructure:"presence"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // 空 = 不限制
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestRate     float64       `mapstructure:"request_rate"` // REST 全局每秒请求数，<=0 不限流
	RequestBurst    int64         `mapstructure:"request_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	Secrets       []string      `mapstructure:"secrets"` // 第一个用于签名，其余仅用于校验（轮换）
	KeyPrefix     string        `mapstructure:"key_prefix"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type WSConfig struct {
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	SendQueue        int           `mapstructure:"send_queue"`
	MaxMessageBytes  int64         `mapstructure:"max_message_bytes"`
	MaxPerUser       int           `mapstructure:"max_per_user"` // <=0 不限制
	FrameRate        float64       `mapstructure:"frame_rate"`   // 每秒入站帧数，<=0 不限流
	FrameBurst       int64         `mapstructure:"frame_burst"`
	MaxPresenceQuery int           `mapstructure:"max_presence_query"`
}

type PresenceConfig struct {
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	OfflineOnLastClose bool          `mapstructure:"offline_on_last_close"`
	StaleAfter         time.Duration `mapstructure:"stale_after"` // 0 = 不回收
	ReapSchedule       string        `mapstructure:"reap_schedule"`
}

type ChatConfig struct {
	PersistMessages bool `mapstructure:"persist_messages"`
	MaxContentBytes int  `mapstructure:"max_content_bytes"`
	HistoryLimit    int  `mapstructure:"history_limit"`
}

type NotifyConfig struct {
	ServiceSecret string     `mapstructure:"service_secret"` // 内部推送接口的 JWT 密钥
	NATS          NATSConfig `mapstructure:"nats"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Servers       []string      `mapstructure:"servers"`
	Name          string        `mapstructure:"name"`
	Subject       string        `mapstructure:"subject"`
	Queue         string        `mapstructure:"queue"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node_id", 1)
	v.SetDefault("dev", false)

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_rate", 0)
	v.SetDefault("server.request_burst", 200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("session.cookie_name", "connect.sid")
	v.SetDefault("session.secrets", []string{})
	v.SetDefault("session.key_prefix", "sess:")
	v.SetDefault("session.lookup_timeout", 3*time.Second)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "matcha")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("ws.pong_wait", 75*time.Second)
	v.SetDefault("ws.write_wait", 10*time.Second)
	v.SetDefault("ws.send_queue", 256)
	v.SetDefault("ws.max_message_bytes", 64<<10)
	v.SetDefault("ws.max_per_user", 0)
	v.SetDefault("ws.frame_rate", 0)
	v.SetDefault("ws.frame_burst", 100)
	v.SetDefault("ws.max_presence_query", 200)

	v.SetDefault("presence.write_timeout", 2*time.Second)
	v.SetDefault("presence.offline_on_last_close", true)
	v.SetDefault("presence.stale_after", 0)
	v.SetDefault("presence.reap_schedule", "@every 1m")

	v.SetDefault("chat.persist_messages", true)
	v.SetDefault("chat.max_content_bytes", 4096)
	v.SetDefault("chat.history_limit", 50)

	v.SetDefault("notify.service_secret", "")
	v.SetDefault("notify.nats.enabled", false)
	v.SetDefault("notify.nats.servers", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("notify.nats.name", "matcha-notify")
	v.SetDefault("notify.nats.subject", "matcha.notifications")
	v.SetDefault("notify.nats.queue", "matcha-gateway")
	v.SetDefault("notify.nats.user", "")
	v.SetDefault("notify.nats.password", "")
	v.SetDefault("notify.nats.reconnect_wait", 500*time.Millisecond)
	v.SetDefault("notify.nats.timeout", 3*time.Second)
}

// 旧 Node 部署使用的环境变量
var legacyEnv = map[string]string{
	"session.secrets":   "SESSION_SECRET",
	"postgres.host":     "DB_HOST",
	"postgres.port":     "DB_PORT",
	"postgres.user":     "DB_USER",
	"postgres.password": "DB_PASSWORD",
	"postgres.database": "DB_NAME",
	"redis.addr":        "REDIS_ADDR",
}

// Load path 为空时尝试当前目录的 config.yaml，不存在则只用默认值 + 环境变量
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) normalize() {
	c.Session.Secrets = compact(c.Session.Secrets)
	c.Server.AllowedOrigins = compact(c.Server.AllowedOrigins)
	c.Notify.NATS.Servers = compact(c.Notify.NATS.Servers)
	if c.WS.FrameBurst <= 0 {
		c.WS.FrameBurst = 1
	}
}

// Validate 缺少 session 密钥时拒绝启动（与旧服务行为一致）
func (c *AppConfig) Validate() error {
	if len(c.Session.Secrets) == 0 {
		return errors.New("config: missing required session secret (SESSION_SECRET)")
	}
	if c.Session.CookieName == "" {
		return errors.New("config: session.cookie_name is empty")
	}
	if c.Session.LookupTimeout <= 0 {
		return errors.New("config: session.lookup_timeout must be positive")
	}
	if c.WS.PingInterval <= 0 || c.WS.PongWait <= 0 || c.WS.WriteWait <= 0 {
		return errors.New("config: ws ping_interval/pong_wait/write_wait must be positive")
	}
	if c.WS.PongWait <= c.WS.PingInterval {
		return fmt.Errorf("config: ws.pong_wait (%s) must exceed ws.ping_interval (%s)", c.WS.PongWait, c.WS.PingInterval)
	}
	if c.WS.SendQueue <= 0 {
		return errors.New("config: ws.send_queue must be positive")
	}
	if c.Presence.WriteTimeout <= 0 {
		return errors.New("config: presence.write_timeout must be positive")
	}
	if c.Notify.NATS.Enabled && (len(c.Notify.NATS.Servers) == 0 || c.Notify.NATS.Subject == "") {
		return errors.New("config: notify.nats enabled without servers/subject")
	}
	return nil
}

// PostgresDSN 显式 dsn 优先，否则由分项拼出
func (c *AppConfig) PostgresDSN() string {
	p := c.Postgres
	if p.DSN != "" {
		return p.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
