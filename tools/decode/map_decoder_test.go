package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

func TestDecodeJSONNumberAndString(t *testing.T) {
	r, err := DecodeJSON[record]([]byte(`{"cookie":{"maxAge":3600},"userId":42,"username":"ana"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), r.UserID)
	assert.Equal(t, "ana", r.Username)

	r, err = DecodeJSON[record]([]byte(`{"userId":" 7 "}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.UserID)
}

func TestDecodeRejectsFraction(t *testing.T) {
	_, err := DecodeJSON[record]([]byte(`{"userId":1.5}`))
	require.Error(t, err)
}

func TestReadInt64(t *testing.T) {
	m := map[string]any{"a": float64(3), "b": "12", "c": true}
	n, err := ReadInt64(m, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = ReadInt64(m, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	_, err = ReadInt64(m, "c")
	assert.Error(t, err)
	_, err = ReadInt64(m, "missing")
	assert.Error(t, err)
}
