package global

import (
	"net/http"

	"Matcha/global/config"
	"Matcha/logger"
	"Matcha/middleware"
	midsec "Matcha/middleware/security"
	chatmod "Matcha/module/chat"
	notemod "Matcha/module/notification"
	usermod "Matcha/module/user"
	"Matcha/service/chat"
	"Matcha/service/presence"
	"Matcha/service/session"
	"Matcha/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/dig"
)

// ScopeNotificationsWrite 内部推送接口要求的 scope
const ScopeNotificationsWrite = "notifications:write"

type RouterDeps struct {
	dig.In

	Cfg          *config.AppConfig
	WS           *chat.Server
	Resolver     *session.Resolver
	Tracker      *presence.Tracker
	Notification *notemod.Handler
	User         *usermod.Handler
	Chat         *chatmod.Handler
}

// NewRouter 组装 gin 引擎：全局中间件 + 路由表
func NewRouter(d RouterDeps) *gin.Engine {
	if !d.Cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	global := middleware.NewManager(middleware.Recovery(), middleware.AccessLog(), middleware.Origin(d.Cfg.Server.AllowedOrigins))
	if d.Cfg.Server.RequestRate > 0 {
		global.Add(middleware.RateLimit(d.Cfg.Server.RequestRate, d.Cfg.Server.RequestBurst))
	}
	r.Use(global.Handlers()...)

	if d.Cfg.Notify.ServiceSecret == "" {
		logger.Warn("[router] notify.service_secret is empty, internal endpoints will reject every call")
	}
	rt := middleware.Routes{
		Auth:     midsec.SessionAuth(d.Resolver),
		Presence: middleware.PresenceRefresh(d.Tracker, d.Cfg.Presence.WriteTimeout),
		Service:  midsec.ServiceAuth(security.DefaultOptions([]byte(d.Cfg.Notify.ServiceSecret)), ScopeNotificationsWrite),
	}

	// ===== websocket =====
	r.GET("/ws", d.WS.HandleWS)
	r.GET("/", d.WS.HandleWS)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": d.WS.ConnMgr().Count(),
			"users":       d.WS.ConnMgr().Users(),
		})
	})

	// ===== 通知 =====
	authed := middleware.RouteOpt{IsAuth: true, Presence: true}
	rt.GET(r, "/notifications", d.Notification.List, authed)
	rt.DELETE(r, "/notifications/:type", d.Notification.DeleteByType, authed)
	rt.POST(r, "/internal/notifications", d.Notification.Create, middleware.RouteOpt{Service: true})

	// ===== 用户 =====
	rt.POST(r, "/heartbeat", d.User.Heartbeat, middleware.RouteOpt{IsAuth: true})
	rt.POST(r, "/users/api/heartbeat", d.User.Heartbeat, middleware.RouteOpt{IsAuth: true})
	rt.POST(r, "/auth/logout", d.User.Logout, middleware.RouteOpt{})

	// ===== 聊天历史 =====
	rt.GET(r, "/chat/messages/:peerId", d.Chat.History, authed)

	return r
}
