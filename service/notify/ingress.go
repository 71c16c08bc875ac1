package notify

import (
	"context"
	"time"

	user "Matcha/module/user/model"
	"Matcha/service/natsx"
	"Matcha/tools/decode"
	"Matcha/tools/errs"
)

// Event 其他服务投递的通知：{"userId":1,"type":"like","message":"..."}
type Event struct {
	UserID  int64  `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// 重复投递的去重窗口
const idemTTL = 10 * time.Minute

// Ingress NATS 订阅 -> Dispatch
type Ingress struct {
	d *Dispatcher
}

func NewIngress(d *Dispatcher) *Ingress { return &Ingress{d: d} }

// Handle natsx.Handler；参数错误直接丢弃（返回错误仅用于日志）
func (in *Ingress) Handle(ctx context.Context, msg natsx.Message) error {
	ev, err := decode.DecodeJSON[Event](msg.Data)
	if err != nil {
		return errs.ErrArgs.WrapMsg("decode notification event", "err", err)
	}
	_, err = in.d.Dispatch(ctx, user.UserID(ev.UserID), ev.Type, ev.Message)
	return err
}

// Subscribe 队列订阅：多实例时每条事件只被一个实例处理
func (in *Ingress) Subscribe(c *natsx.Client, subject, queue string, idem natsx.IdemStore) error {
	mws := []natsx.Middleware{natsx.LogErrors(), natsx.Recover()}
	if idem != nil {
		mws = append(mws, natsx.IdemMiddleware(idem, idemTTL))
	}
	return c.Subscribe(subject, queue, in.Handle, mws...)
}
