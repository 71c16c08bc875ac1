package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	user "Matcha/module/user/model"
	"Matcha/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrConnClosed = errors.New("chat: connection closed")

type connConf struct {
	PingInterval time.Duration
	WriteWait    time.Duration
	SendQueue    int
}

// WsConn 一条已认证的连接。所有写操作只在 writeLoop 中进行
type WsConn struct {
	ID        string
	UserID    user.UserID
	Username  string
	Conn      *websocket.Conn
	Remote    net.Addr
	CreatedAt time.Time

	conf    connConf
	send    chan []byte
	done    chan struct{}
	stopped chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWsConn(id string, uid user.UserID, username string, ws *websocket.Conn, conf connConf, now time.Time) *WsConn {
	if conf.SendQueue <= 0 {
		conf.SendQueue = 256
	}
	c := &WsConn{
		ID:        id,
		UserID:    uid,
		Username:  username,
		Conn:      ws,
		CreatedAt: now,
		conf:      conf,
		send:      make(chan []byte, conf.SendQueue),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
	if ws != nil {
		c.Remote = ws.RemoteAddr()
	}
	return c
}

// Send 排队一帧；队列满时阻塞，直到写入、连接关闭或 ctx 结束
func (c *WsConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendFrame 编码后 Send
func (c *WsConn) SendFrame(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(ctx, data)
}

// TrySend 不阻塞；队列满或连接已关闭返回 false（消息丢弃）
func (c *WsConn) TrySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WsConn) Close() { c.CloseWith(websocket.CloseNormalClosure, "") }

// CloseWith 通知写协程发送 close 帧并关闭底层连接；只有第一次调用生效
func (c *WsConn) CloseWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
}

func (c *WsConn) Done() <-chan struct{} { return c.done }

// Wait 等写协程退出（socket 已关闭）
func (c *WsConn) Wait() { <-c.stopped }

func (c *WsConn) writeLoop() {
	pingInterval := c.conf.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(c.closeCode, c.closeReason),
			time.Now().Add(c.conf.WriteWait))
		_ = c.Conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				logger.Info("[WS] write err", zap.String("conn_id", c.ID), zap.Int64("user_id", int64(c.UserID)), zap.Error(err))
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.conf.WriteWait)); err != nil {
				logger.Info("[WS] ping err", zap.String("conn_id", c.ID), zap.Int64("user_id", int64(c.UserID)), zap.Error(err))
				c.Close()
				return
			}

		case <-c.done:
			// 关闭前把已排队的帧写完
			for {
				select {
				case data := <-c.send:
					if c.write(data) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *WsConn) write(data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
