package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Matcha/tools/security"
)

// 握手拒绝原因（对外可见，作为 close reason / 401 detail）
const (
	ReasonNoCookie         = "No session cookie"
	ReasonInvalidSignature = "Invalid session signature"
	ReasonInvalidSession   = "Invalid or expired session"
	ReasonFailed           = "Authentication failed"
)

// AuthError 认证失败；Reason 为上面四个之一
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Reason 取出认证失败原因；非 AuthError 一律视为 ReasonFailed
func Reason(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonFailed
}

// Resolver cookie -> 会话；WS 握手与 REST 中间件共用
type Resolver struct {
	store      Store
	cookieName string
	secrets    []string
	timeout    time.Duration
}

func NewResolver(store Store, cookieName string, secrets []string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{store: store, cookieName: cookieName, secrets: secrets, timeout: timeout}
}

func (r *Resolver) CookieName() string { return r.cookieName }

func (r *Resolver) Store() Store { return r.store }

// Resolve 返回 *Session 或 *AuthError；不会 panic 给调用方
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (sess *Session, err error) {
	defer func() {
		if p := recover(); p != nil {
			sess, err = nil, &AuthError{Reason: ReasonFailed}
		}
	}()

	sid, err := r.SessionID(req)
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err = r.store.Get(lookupCtx, sid)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &AuthError{Reason: ReasonInvalidSession, Err: err}
	case err != nil:
		return nil, &AuthError{Reason: ReasonFailed, Err: err}
	case sess == nil || !sess.UserID.Valid():
		return nil, &AuthError{Reason: ReasonInvalidSession}
	}
	return sess, nil
}

// SessionID 从请求 cookie 中取出（并校验签名后的）会话 ID
func (r *Resolver) SessionID(req *http.Request) (string, error) {
	c, err := req.Cookie(r.cookieName)
	if err != nil || c.Value == "" {
		return "", &AuthError{Reason: ReasonNoCookie}
	}

	// express 写 cookie 时做了 encodeURIComponent（s: -> s%3A）
	value := c.Value
	if strings.Contains(value, "%") {
		if dec, derr := url.PathUnescape(value); derr == nil {
			value = dec
		}
	}

	if strings.HasPrefix(value, security.SignedPrefix) {
		sid, ok := security.UnsignCookie(value[len(security.SignedPrefix):], r.secrets...)
		if !ok {
			return "", &AuthError{Reason: ReasonInvalidSignature}
		}
		return sid, nil
	}
	return value, nil
}
