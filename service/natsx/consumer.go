package natsx

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Subscribe Core 订阅；queue 非空时同组内分摊（多实例只处理一次）
func (c *Client) Subscribe(subject, queue string, h Handler, mws ...Middleware) error {
	h = Chain(h, mws...)
	cb := func(m *nats.Msg) {
		_ = h(context.Background(), Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = c.nc.Subscribe(subject, cb)
	} else {
		sub, err = c.nc.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return err
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}
