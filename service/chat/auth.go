package chat

import (
	"context"
	"net/http"
	"time"

	"Matcha/logger"
	"Matcha/service/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CloseAuthFailed 握手认证失败的应用层关闭码，四种原因共用
const CloseAuthFailed = 4001

// Authenticator 校验握手请求携带的会话 cookie
type Authenticator struct {
	resolver  *session.Resolver
	writeWait time.Duration
}

func NewAuthenticator(resolver *session.Resolver, writeWait time.Duration) *Authenticator {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Authenticator{resolver: resolver, writeWait: writeWait}
}

// Authenticate 成功返回会话；失败时已向 ws 写出 4001 close 帧并关闭连接
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, ws *websocket.Conn) (*session.Session, error) {
	sess, err := a.resolver.Resolve(ctx, r)
	if err == nil {
		return sess, nil
	}

	reason := session.Reason(err)
	logger.Info("[WS] auth rejected",
		zap.String("reason", reason),
		zap.String("remote", r.RemoteAddr),
		zap.Error(err),
	)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseAuthFailed, reason),
		time.Now().Add(a.writeWait))
	_ = ws.Close()
	return nil, err
}
