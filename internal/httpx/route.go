package httpx

import (
	"context"
	"net/http"

	"github.com/utrading/utrading-signal-gateway/pkg/goplus"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// HandlerFunc 业务处理函数，返回值序列化为 200 响应
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Route 一个路由下按方法分派的处理函数
type Route struct {
	Name    string
	Methods map[string]HandlerFunc
}

// Serve 处理一次请求，错误和 panic 都转换为 JSON 错误响应
func (rt *Route) Serve(ctx context.Context, ev Event) (resp *Response) {
	req := NewRequest(ev)
	if req.Method == http.MethodOptions {
		return Preflight()
	}

	h, ok := rt.Methods[req.Method]
	if !ok {
		return Fail(MethodNotAllowed())
	}

	defer goplus.RecoverWith(func(r any) {
		resp = Fail(Internal(goplus.PanicError(r)))
	})

	body, err := h(ctx, req)
	if err != nil {
		e := AsError(err)
		if e.Status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("route", rt.Name).Msg("handler failed")
		}
		return Fail(e)
	}
	return JSON(http.StatusOK, body)
}
