package chat

import (
	"context"
	"fmt"
)

type Dispatcher struct {
	handlers map[FrameType]Handler
}

func NewDispatcher(hs ...Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[FrameType]Handler, len(hs))}
	for _, h := range hs {
		d.Register(h)
	}
	return d
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, f Frame, conn *WsConn) error {
	h, ok := d.handlers[f.FrameType()]
	if !ok {
		return fmt.Errorf("no handler for type=%s: %w", f.FrameType(), ErrUnknownType)
	}
	return h.Handle(ctx, f, conn)
}
