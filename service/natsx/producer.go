package natsx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nats-io/nats.go"
)

const MsgIDHeader = "Nats-Msg-Id"

// Publish 发送并 flush，ctx 控制等待服务端确认的时间
func (c *Client) Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return c.nc.FlushWithContext(ctx)
}

// PublishOnce 带消息 ID 发布，消费端据此去重；msgID 为空则自动生成
func (c *Client) PublishOnce(ctx context.Context, subject string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = genMsgID()
	}
	hdr[MsgIDHeader] = msgID
	return c.Publish(ctx, subject, data, hdr)
}

// 生成随机 msgID（16字节）
func genMsgID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
