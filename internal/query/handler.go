package query

import (
	"context"
	"errors"
	"net/http"

	"github.com/utrading/utrading-signal-gateway/internal/auth"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

// 路由名，同时用于指标和访问记录
const (
	RouteListSignals  = "list_signals"
	RouteSignalDetail = "signal_detail"
	RoutePositions    = "positions"
)

type SignalStore interface {
	List(ctx context.Context, strategyName, status string, limit int) ([]*models.StoredSignal, error)
	FindBySignalID(ctx context.Context, signalID string) (*models.StoredSignal, error)
}

type AccountStore interface {
	Latest(ctx context.Context) (*models.AccountState, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, header httpx.Header) (auth.Identity, error)
	Authorize(id auth.Identity, strategyID string) error
}

// UsageRecorder 记录已授权的访问
type UsageRecorder interface {
	Record(strategyID, route string, status int)
}

// Handler 信号与持仓查询
type Handler struct {
	auth     Authenticator
	signals  SignalStore
	accounts AccountStore
	usage    UsageRecorder
}

// NewHandler usage 可以为 nil
func NewHandler(authenticator Authenticator, signals SignalStore, accounts AccountStore, usage UsageRecorder) *Handler {
	return &Handler{
		auth:     authenticator,
		signals:  signals,
		accounts: accounts,
		usage:    usage,
	}
}

func (h *Handler) ListSignalsRoute() *httpx.Route {
	return h.route(RouteListSignals, h.ListSignals)
}

func (h *Handler) SignalDetailRoute() *httpx.Route {
	return h.route(RouteSignalDetail, h.SignalDetail)
}

func (h *Handler) PositionsRoute() *httpx.Route {
	return h.route(RoutePositions, h.Positions)
}

// authorizedFunc 已通过认证授权的处理函数
type authorizedFunc func(ctx context.Context, req *httpx.Request, strategyID string) (any, error)

// route 先认证、再校验 strategy_id、最后授权，之后才访问数据
func (h *Handler) route(name string, fn authorizedFunc) *httpx.Route {
	return &httpx.Route{
		Name: name,
		Methods: map[string]httpx.HandlerFunc{
			http.MethodGet: func(ctx context.Context, req *httpx.Request) (any, error) {
				id, err := h.auth.Authenticate(ctx, req.Header)
				if err != nil {
					return nil, err
				}

				strategyID := req.Param("strategy_id")
				if strategyID == "" {
					return nil, httpx.BadRequest("strategy_id is required")
				}
				if err = h.auth.Authorize(id, strategyID); err != nil {
					return nil, err
				}

				body, err := fn(ctx, req, strategyID)
				h.record(strategyID, name, err)
				return body, err
			},
		},
	}
}

func (h *Handler) record(strategyID, route string, err error) {
	if h.usage == nil {
		return
	}
	status := http.StatusOK
	if err != nil {
		status = httpx.AsError(err).Status
	}
	h.usage.Record(strategyID, route, status)
}

// storageError 存储层错误统一为 500
func storageError(err error) error {
	var e *httpx.Error
	if errors.As(err, &e) {
		return e
	}
	return httpx.Internal(err)
}
