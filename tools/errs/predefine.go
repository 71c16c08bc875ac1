package errs

import (
	"fmt"
	"net/http"
)

const (
	ServerInternalError = 500
	ArgsError           = 1001
	RecordNotFoundError = 1004
	UnauthorizedError   = 1401
	ForbiddenError      = 1403
	PresenceError       = 1501
)

var (
	ErrServer         = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFoundError")
	ErrUnauthorized   = NewCodeError(UnauthorizedError, "Unauthorized")
	ErrForbidden      = NewCodeError(ForbiddenError, "Forbidden")
	ErrPresence       = NewCodeError(PresenceError, "PresenceError")
)

// HTTPStatus 错误码 -> HTTP 状态码
func HTTPStatus(err error) int {
	ce, ok := AsCode(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case ArgsError:
		return http.StatusBadRequest
	case RecordNotFoundError:
		return http.StatusNotFound
	case UnauthorizedError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Body 对外响应体；非 CodeError 统一成 ErrServer，避免泄漏内部信息
func Body(err error) CodeError {
	if ce, ok := AsCode(err); ok {
		return *ce
	}
	return ErrServer
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
