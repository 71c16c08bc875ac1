package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUnsignRoundTrip(t *testing.T) {
	signed := SignCookie("abc123", "keyboard cat")
	assert.True(t, strings.HasPrefix(signed, "abc123."))
	assert.NotContains(t, signed, "=")

	v, ok := UnsignCookie(signed, "keyboard cat")
	require.True(t, ok)
	assert.Equal(t, "abc123", v)
}

func TestUnsignRejects(t *testing.T) {
	signed := SignCookie("abc123", "keyboard cat")

	_, ok := UnsignCookie(signed, "other secret")
	assert.False(t, ok)

	_, ok = UnsignCookie("abc123", "keyboard cat")
	assert.False(t, ok, "no signature part")

	_, ok = UnsignCookie(signed+"x", "keyboard cat")
	assert.False(t, ok, "tampered signature")

	_, ok = UnsignCookie("evil"+signed[len("abc123"):], "keyboard cat")
	assert.False(t, ok, "tampered value")

	_, ok = UnsignCookie(signed)
	assert.False(t, ok, "no secrets")
}

func TestUnsignSecretRotation(t *testing.T) {
	signed := SignCookie("sid-1", "old")
	v, ok := UnsignCookie(signed, "new", "old")
	require.True(t, ok)
	assert.Equal(t, "sid-1", v)
}

func TestUnsignValueWithDots(t *testing.T) {
	signed := SignCookie("a.b.c", "s3cret")
	v, ok := UnsignCookie(signed, "s3cret")
	require.True(t, ok)
	assert.Equal(t, "a.b.c", v)
}

func TestServiceTokenRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("internal-secret"))
	tok, exp, err := Generate(opts, "likes", []string{"notify"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)

	claims, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, "likes", claims.Subject)
	assert.True(t, claims.HasScope("notify"))
	assert.False(t, claims.HasScope("admin"))
}

func TestServiceTokenRejects(t *testing.T) {
	opts := DefaultOptions([]byte("internal-secret"))
	tok, _, err := Generate(opts, "likes", nil)
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("wrong")), tok)
	assert.Error(t, err)

	other := opts
	other.Issuer = "someone-else"
	_, err = Verify(other, tok)
	assert.Error(t, err)

	_, err = Verify(Options{Secret: []byte("x"), Alg: "RS256"}, tok)
	assert.Error(t, err)
}
