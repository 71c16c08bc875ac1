package errs

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrArgs.WrapMsg("bad type", "type", "")
	ce, ok := AsCode(err)
	require.True(t, ok)
	assert.Equal(t, ArgsError, ce.Code)
	assert.Equal(t, "bad type, type=", ce.Detail)
	assert.True(t, ErrArgs.Is(err))
	assert.False(t, ErrServer.Is(err))

	// predefined value must stay untouched
	assert.Empty(t, ErrArgs.Detail)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized.Wrap()))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(errors.Wrap(ErrArgs.Wrap(), "outer")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestBodyHidesPlainErrors(t *testing.T) {
	assert.Equal(t, ErrServer, Body(errors.New("pq: connection refused")))
	assert.Equal(t, "Forbidden", Body(ErrForbidden.Wrap()).Msg)
}

func TestErrPanic(t *testing.T) {
	assert.Nil(t, ErrPanic(nil))
	err := ErrPanic("oops")
	ce, ok := AsCode(err)
	require.True(t, ok)
	assert.Equal(t, "oops", ce.Detail)
}
