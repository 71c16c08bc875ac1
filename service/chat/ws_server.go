package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"Matcha/logger"
	"Matcha/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/juju/ratelimit"
	"go.uber.org/zap"
)

// HandleWS gin 路由入口
func (s *Server) HandleWS(c *gin.Context) {
	s.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP 升级 -> 认证 -> 登记 -> welcome -> 读循环 -> 清理
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败；Upgrade 已写回 HTTP 错误
		logger.Info("[WS] upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	// ---- 认证：失败时 Authenticate 已经以 4001 关闭连接 ----
	sess, err := s.auth.Authenticate(s.ctx, r, ws)
	if err != nil {
		return
	}

	conn := newWsConn(s.ids.NextString(), sess.UserID, sess.Username, ws, connConf{
		PingInterval: s.opts.PingInterval,
		WriteWait:    s.opts.WriteWait,
		SendQueue:    s.opts.SendQueue,
	}, s.now())

	first, err := s.connMgr.Register(conn)
	if err != nil {
		logger.Warn("[WS] register failed", zap.String("conn_id", conn.ID), zap.Error(err))
		_ = ws.Close()
		return
	}
	safe.Go("ws-writer-"+conn.ID, conn.writeLoop)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	logger.Info("[WS] connected",
		zap.String("conn_id", conn.ID),
		zap.Int64("user_id", int64(conn.UserID)),
		zap.String("username", conn.Username),
		zap.Bool("first", first),
	)

	if s.ctx.Err() != nil {
		// 登记晚于 Shutdown 的 CloseAll 快照，自行关闭
		conn.CloseWith(websocket.CloseGoingAway, "Server shutting down")
	} else {
		// welcome 必须是客户端收到的第一帧
		if err := conn.SendFrame(ctx, Welcome(conn.UserID)); err != nil {
			logger.Info("[WS] welcome failed", zap.String("conn_id", conn.ID), zap.Error(err))
		}
		if first && s.presence != nil {
			s.markOnline(ctx, conn.UserID)
		}
		s.readLoop(ctx, conn)
	}

	// ---- 退出：移除、关闭、等待写协程、离线 ----
	last := s.connMgr.Remove(conn)
	conn.Close()
	conn.Wait()
	if last && s.presence != nil {
		// 连接的 ctx 已取消，离线写入单独给一个上下文
		s.markOffline(context.Background(), conn.UserID)
	}
	logger.Info("[WS] closed",
		zap.String("conn_id", conn.ID),
		zap.Int64("user_id", int64(conn.UserID)),
		zap.Bool("last", last),
	)
}

// readLoop 只读不写；出错或连接被关闭即返回
func (s *Server) readLoop(ctx context.Context, conn *WsConn) {
	ws := conn.Conn
	ws.SetReadLimit(s.opts.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	var bucket *ratelimit.Bucket
	if s.opts.FrameRate > 0 {
		bucket = ratelimit.NewBucketWithRate(s.opts.FrameRate, s.opts.FrameBurst)
	}

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			logReadErr(conn, err)
			return
		}
		// 任何入站流量都算存活
		_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if bucket != nil {
			bucket.Wait(1)
		}

		if err := s.handleFrame(ctx, conn, data); err != nil {
			if errors.Is(err, ErrConnClosed) || ctx.Err() != nil {
				return
			}
			logger.Info("[WS] handle frame err",
				zap.String("conn_id", conn.ID),
				zap.Int64("user_id", int64(conn.UserID)),
				zap.Error(err),
			)
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, conn *WsConn, data []byte) error {
	f, err := ParseFrame(data)
	if err != nil {
		// 只打印简短样本
		sample := data
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Debug("[WS] bad frame",
			zap.String("conn_id", conn.ID),
			zap.Error(err),
			zap.ByteString("sample", sample),
		)
		return conn.SendFrame(ctx, Error(err.Error()))
	}

	err = s.disp.Dispatch(ctx, f, conn)
	if errors.Is(err, ErrUnknownType) {
		return conn.SendFrame(ctx, Error(ErrUnknownType.Error()))
	}
	return err
}

func logReadErr(conn *WsConn, err error) {
	fields := []zap.Field{
		zap.String("conn_id", conn.ID),
		zap.Int64("user_id", int64(conn.UserID)),
		zap.Error(err),
	}
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Debug("[WS] peer closed", fields...)
	case errors.As(err, &ne) && ne.Timeout():
		logger.Info("[WS] read timeout", fields...)
	default:
		logger.Debug("[WS] read err", fields...)
	}
}
