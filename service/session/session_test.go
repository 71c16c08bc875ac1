package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	user "Matcha/module/user/model"
	"Matcha/tools/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "keyboard cat"

func newResolver(store Store) *Resolver {
	return NewResolver(store, "connect.sid", []string{secret}, 200*time.Millisecond)
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if value != "" {
		req.Header.Set("Cookie", "theme=dark; connect.sid="+value)
	}
	return req
}

func signed(sid string) string {
	return url.PathEscape(security.SignedPrefix + security.SignCookie(sid, secret))
}

type slowStore struct{}

func (slowStore) Get(ctx context.Context, _ string) (*Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (slowStore) Destroy(context.Context, string) error { return nil }

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*Session, error) { panic("driver bug") }
func (brokenStore) Destroy(context.Context, string) error         { return nil }

func TestResolveSignedCookie(t *testing.T) {
	store := NewMemoryStore()
	store.Put("abc", Session{UserID: 7, Username: "ana"})

	sess, err := newResolver(store).Resolve(context.Background(), requestWithCookie(signed("abc")))
	require.NoError(t, err)
	assert.Equal(t, user.UserID(7), sess.UserID)
	assert.Equal(t, "ana", sess.Username)
	assert.Equal(t, "abc", sess.ID)
}

func TestResolveUnsignedCookie(t *testing.T) {
	store := NewMemoryStore()
	store.Put("plain-sid", Session{UserID: 3})

	sess, err := newResolver(store).Resolve(context.Background(), requestWithCookie("plain-sid"))
	require.NoError(t, err)
	assert.Equal(t, user.UserID(3), sess.UserID)
}

func TestResolveRejections(t *testing.T) {
	store := NewMemoryStore()
	store.Put("abc", Session{UserID: 7})
	store.Put("anon", Session{})

	tests := []struct {
		name   string
		store  Store
		cookie string
		reason string
	}{
		{"missing cookie", store, "", ReasonNoCookie},
		{"bad signature", store, url.PathEscape("s:abc.AAAA"), ReasonInvalidSignature},
		{"signed with other secret", store, url.PathEscape("s:" + security.SignCookie("abc", "nope")), ReasonInvalidSignature},
		{"unknown session", store, signed("zzz"), ReasonInvalidSession},
		{"session without user", store, signed("anon"), ReasonInvalidSession},
		{"store timeout", slowStore{}, signed("abc"), ReasonFailed},
		{"store panic", brokenStore{}, signed("abc"), ReasonFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := newResolver(tt.store).Resolve(context.Background(), requestWithCookie(tt.cookie))
			require.Error(t, err)
			assert.Nil(t, sess)
			assert.Equal(t, tt.reason, Reason(err))
		})
	}
}

func TestReasonForeignError(t *testing.T) {
	assert.Equal(t, ReasonFailed, Reason(errors.New("x")))
}

func TestDecode(t *testing.T) {
	sess, err := Decode([]byte(`{"cookie":{"originalMaxAge":3600000,"httpOnly":true},"userId":12,"username":"bo"}`))
	require.NoError(t, err)
	assert.Equal(t, user.UserID(12), sess.UserID)
	assert.Equal(t, "bo", sess.Username)

	_, err = Decode([]byte(`{"cookie":{}}`))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDestroy(t *testing.T) {
	store := NewMemoryStore()
	store.Put("abc", Session{UserID: 1})
	require.NoError(t, store.Destroy(context.Background(), "abc"))
	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}
