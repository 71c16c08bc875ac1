package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	user "Matcha/module/user/model"
	"Matcha/service/chat"
	"Matcha/service/chat/handlers"
	"Matcha/service/session"
	"Matcha/tools/ids"
	"Matcha/tools/security"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "keyboard cat"

// ---- fakes ----

type fakePresence struct {
	mu     sync.Mutex
	online map[user.UserID]bool
	events []string

	downDelay time.Duration // 模拟慢的离线写入
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[user.UserID]bool{}}
}

func (p *fakePresence) Connected(_ context.Context, uid user.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[uid] = true
	p.events = append(p.events, "up:"+uid.String())
}

func (p *fakePresence) Disconnected(_ context.Context, uid user.UserID) {
	time.Sleep(p.downDelay)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[uid] = false
	p.events = append(p.events, "down:"+uid.String())
}

func (p *fakePresence) Statuses(_ context.Context, ids []user.UserID) (map[user.UserID]user.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[user.UserID]user.Status{}
	for _, id := range ids {
		out[id] = user.StatusOffline
		if p.online[id] {
			out[id] = user.StatusOnline
		}
	}
	return out, nil
}

func (p *fakePresence) Online(uid user.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[uid]
}

func (p *fakePresence) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// ---- harness ----

type env struct {
	srv      *chat.Server
	mgr      *chat.ConnManager
	presence *fakePresence
	http     *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := session.NewMemoryStore()
	for uid := user.UserID(1); uid <= 3; uid++ {
		store.Put("sid-"+uid.String(), session.Session{UserID: uid, Username: "user" + uid.String()})
	}
	resolver := session.NewResolver(store, "connect.sid", []string{secret}, time.Second)

	mgr := chat.NewConnManager(chat.ManagerConf{})
	presence := newFakePresence()
	disp := chat.NewDispatcher(handlers.All(handlers.Deps{
		Forwarder: mgr,
		Presence:  presence,
		MaxIDs:    3,
	})...)
	srv := chat.NewServer(chat.Options{
		PingInterval: time.Second,
		PongWait:     3 * time.Second,
		WriteWait:    time.Second,
	}, mgr, disp, chat.NewAuthenticator(resolver, time.Second), presence, ids.NewGenerator(1))

	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		hs.Close()
	})
	return &env{srv: srv, mgr: mgr, presence: presence, http: hs}
}

func signedCookie(sid string) string {
	return url.PathEscape(security.SignedPrefix + security.SignCookie(sid, secret))
}

func (e *env) dialRaw(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", "connect.sid="+cookie)
	}
	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.http.URL, "http"), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// dial 以 uid 登录并读掉 welcome
func (e *env) dial(t *testing.T, uid user.UserID) *websocket.Conn {
	t.Helper()
	ws := e.dialRaw(t, signedCookie("sid-"+uid.String()))
	welcome := readFrame(t, ws)
	require.Equal(t, "welcome", welcome["type"])
	require.EqualValues(t, uid, welcome["userId"])
	return ws
}

func readRaw(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(readRaw(t, ws)), &m))
	return m
}

func send(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func closeClient(ws *websocket.Conn) {
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()
}

// ---- tests ----

func TestWelcomeThenRegistered(t *testing.T) {
	e := newEnv(t)
	e.dial(t, 1)

	assert.True(t, e.mgr.IsConnected(1))
	assert.Equal(t, 1, e.mgr.Count())
	assert.Eventually(t, func() bool {
		return len(e.presence.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"up:1"}, e.presence.Events())
}

func TestUnsignedCookieAccepted(t *testing.T) {
	e := newEnv(t)
	ws := e.dialRaw(t, "sid-2")
	assert.JSONEq(t, `{"type":"welcome","userId":2}`, readRaw(t, ws))
}

func TestAuthRejectedWith4001(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		reason string
	}{
		{"no cookie", "", session.ReasonNoCookie},
		{"bad signature", url.PathEscape("s:sid-1.AAAA"), session.ReasonInvalidSignature},
		{"signed with other secret", url.PathEscape("s:" + security.SignCookie("sid-1", "other")), session.ReasonInvalidSignature},
		{"unknown session", signedCookie("sid-404"), session.ReasonInvalidSession},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ws := e.dialRaw(t, tc.cookie)

			require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := ws.ReadMessage()
			var ce *websocket.CloseError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, chat.CloseAuthFailed, ce.Code)
			assert.Equal(t, tc.reason, ce.Text)

			assert.Zero(t, e.mgr.Count())
			assert.Zero(t, e.mgr.Users())
			assert.Empty(t, e.presence.Events())
		})
	}
}

func TestPingBurstAnsweredInOrder(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, 1)

	for i := 0; i < 50; i++ {
		send(t, ws, `{"type":"ping"}`)
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, `{"type":"pong"}`, readRaw(t, ws), "frame %d", i)
	}

	// 没有多余的帧
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

func TestMessageForwardedToEveryConnection(t *testing.T) {
	e := newEnv(t)
	alice := e.dial(t, 1)
	bobPhone := e.dial(t, 2)
	bobLaptop := e.dial(t, 2)

	send(t, alice, `{"type":"message","to":2,"content":"hi"}`)
	assert.Equal(t, `{"type":"ack","received":true}`, readRaw(t, alice))

	for _, ws := range []*websocket.Conn{bobPhone, bobLaptop} {
		m := readFrame(t, ws)
		assert.Equal(t, "message", m["type"])
		assert.EqualValues(t, 1, m["from"])
		assert.Equal(t, "hi", m["content"])
		assert.NotZero(t, m["timestamp"])
	}
}

func TestMessageToOfflineUserIsNotReplayed(t *testing.T) {
	e := newEnv(t)
	alice := e.dial(t, 1)

	send(t, alice, `{"type":"message","to":2,"content":"hi"}`)
	assert.Equal(t, `{"type":"ack","received":true}`, readRaw(t, alice))

	bob := e.dial(t, 2)
	send(t, bob, `{"type":"ping"}`)
	assert.Equal(t, `{"type":"pong"}`, readRaw(t, bob), "nothing queued for bob before his pong")
}

func TestMessageWithoutRecipientIsOnlyAcked(t *testing.T) {
	e := newEnv(t)
	alice := e.dial(t, 1)

	send(t, alice, `{"type":"message","content":"hi"}`)
	assert.Equal(t, `{"type":"ack","received":true}`, readRaw(t, alice))
	send(t, alice, `{"type":"message","to":1}`)
	assert.Equal(t, `{"type":"ack","received":true}`, readRaw(t, alice))
	for _, frame := range []string{
		`{"type":"message","to":"","content":"hi"}`,
		`{"type":"message","to":"bob","content":"hi"}`,
		`{"type":"message","to":2,"content":5}`,
	} {
		send(t, alice, frame)
		assert.Equal(t, `{"type":"ack","received":true}`, readRaw(t, alice), frame)
	}
	send(t, alice, `{"type":"ping"}`)
	assert.Equal(t, `{"type":"pong"}`, readRaw(t, alice))
}

func TestCheckOnlineUsers(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, 1)
	e.presence.Connected(context.Background(), 5)

	send(t, ws, `{"type":"check_online_users","userIds":[5,6]}`)
	assert.Equal(t, `{"type":"online_status_result","status":{"5":"online","6":"offline"}}`, readRaw(t, ws))

	send(t, ws, `{"type":"check_online_users","userIds":[1,2,3,4]}`)
	assert.Equal(t, `{"type":"error","message":"Too many userIds"}`, readRaw(t, ws))

	send(t, ws, `{"type":"check_online_users"}`)
	assert.Equal(t, `{"type":"online_status_result","status":{}}`, readRaw(t, ws))
}

func TestBadFramesKeepConnectionOpen(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, 1)

	send(t, ws, `not json`)
	assert.Equal(t, `{"type":"error","message":"Invalid JSON"}`, readRaw(t, ws))
	send(t, ws, `{"type":"dance"}`)
	assert.Equal(t, `{"type":"error","message":"Unknown type"}`, readRaw(t, ws))
	send(t, ws, `{"type":"ping"}`)
	assert.Equal(t, `{"type":"pong"}`, readRaw(t, ws))
	assert.True(t, e.mgr.IsConnected(1))
}

func TestLastCloseRemovesUser(t *testing.T) {
	e := newEnv(t)
	first := e.dial(t, 3)
	second := e.dial(t, 3)
	require.Len(t, e.mgr.Lookup(3), 2)

	closeClient(first)
	assert.Eventually(t, func() bool { return len(e.mgr.Lookup(3)) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.mgr.IsConnected(3))

	closeClient(second)
	assert.Eventually(t, func() bool { return !e.mgr.IsConnected(3) }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, e.mgr.Users())
	assert.Eventually(t, func() bool {
		ev := e.presence.Events()
		return len(ev) == 2 && ev[1] == "down:3"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesConnections(t *testing.T) {
	e := newEnv(t)
	ws := e.dial(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.srv.Shutdown(ctx))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)
	assert.Zero(t, e.mgr.Count())
}

func TestServerPingsAndDropsSilentPeer(t *testing.T) {
	e := newEnv(t)

	alive := e.dial(t, 1)
	pinged := make(chan struct{}, 1)
	alive.SetPingHandler(func(data string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return alive.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := alive.ReadMessage(); err != nil {
				return
			}
		}
	}()
	select {
	case <-pinged:
	case <-time.After(3 * time.Second):
		t.Fatal("no ping control frame from server")
	}

	// 不读 -> 不回 pong，超过 pong wait 后服务端断开
	e.dial(t, 2)
	assert.Eventually(t, func() bool { return !e.mgr.IsConnected(2) }, 6*time.Second, 50*time.Millisecond)
	assert.True(t, e.mgr.IsConnected(1))
}

func TestReconnectDuringSlowOfflineWriteStaysOnline(t *testing.T) {
	e := newEnv(t)
	e.presence.downDelay = 300 * time.Millisecond

	first := e.dial(t, 1)
	require.Eventually(t, func() bool { return e.presence.Online(1) }, time.Second, 10*time.Millisecond)

	closeClient(first)
	require.Eventually(t, func() bool { return !e.mgr.IsConnected(1) }, 2*time.Second, 5*time.Millisecond)
	e.dial(t, 1)

	time.Sleep(600 * time.Millisecond)
	assert.True(t, e.mgr.IsConnected(1))
	assert.True(t, e.presence.Online(1), "offline write must not win over the reconnect")
}

func TestShutdownRejectsNewHandshakes(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.srv.Shutdown(ctx))

	header := http.Header{}
	header.Set("Cookie", "connect.sid="+signedCookie("sid-1"))
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.http.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Zero(t, e.mgr.Count())
}
