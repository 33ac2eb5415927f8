package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 带状态码的业务错误，Detail 原样返回给调用方
type Error struct {
	Status int
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Cause)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

func Unauthorized(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Detail: detail}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Status: http.StatusForbidden, Detail: fmt.Sprintf(format, args...)}
}

func NotFound(detail string) *Error {
	return &Error{Status: http.StatusNotFound, Detail: detail}
}

func MethodNotAllowed() *Error {
	return &Error{Status: http.StatusMethodNotAllowed, Detail: "Method not allowed"}
}

// Internal 未预期的错误，消息带上原始错误文本
func Internal(err error) *Error {
	return &Error{
		Status: http.StatusInternalServerError,
		Detail: "Internal server error: " + err.Error(),
		Cause:  err,
	}
}

// AsError 将任意错误转为 *Error，未知错误视为 500
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
