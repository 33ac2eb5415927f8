package query

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/auth"
	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

type usageCall struct {
	strategyID string
	route      string
	status     int
}

type memUsage struct {
	mu    sync.Mutex
	calls []usageCall
}

func (m *memUsage) Record(strategyID, route string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, usageCall{strategyID, route, status})
}

type fixture struct {
	handler  *Handler
	signals  *dao.SignalStoreDAO
	accounts *dao.AccountStateDAO
	usage    *memUsage
}

func setup(t *testing.T) *fixture {
	db, err := dal.OpenSQLite("file::memory:")
	require.NoError(t, err)

	tables := config.DefaultTables()
	dal.AutoMigrate(db, tables)
	conn := dal.Static(db)

	strategies := dao.NewStrategyDAO(conn, tables.Strategies)
	ctx := context.Background()
	require.NoError(t, strategies.Create(ctx, &models.Strategy{StrategyID: "S1", APIKey: "key-s1"}))
	require.NoError(t, strategies.Create(ctx, &models.Strategy{StrategyID: "S2", APIKey: "key-s2"}))

	f := &fixture{
		signals:  dao.NewSignalStoreDAO(conn, tables.SignalStore),
		accounts: dao.NewAccountStateDAO(conn, tables.AccountState),
		usage:    &memUsage{},
	}
	f.handler = NewHandler(auth.NewAuthenticator(strategies, nil), f.signals, f.accounts, f.usage)
	return f
}

func strPtr(s string) *string { return &s }

func (f *fixture) storeSignal(t *testing.T, signalID, strategyID string, decision *string, at time.Time) {
	doc, err := json.Marshal(map[string]any{
		"signal_id":   signalID,
		"strategy_id": strategyID,
		"signal_data": map[string]any{"strategy_name": strategyID},
	})
	require.NoError(t, err)

	require.NoError(t, f.signals.Create(context.Background(), &models.StoredSignal{
		SignalID:     signalID,
		StrategyID:   strategyID,
		StrategyName: strategyID,
		Decision:     decision,
		ReceivedAt:   at,
		Document:     datatypes.JSON(doc),
	}))
}

func call(route *httpx.Route, key string, query, params map[string]string) *httpx.Response {
	headers := map[string]string{}
	if key != "" {
		headers["x-api-key"] = key
	}
	return route.Serve(context.Background(), httpx.Event{
		Method:     http.MethodGet,
		Headers:    headers,
		Query:      query,
		PathParams: params,
	})
}

func detail(t *testing.T, resp *httpx.Response) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body.Detail
}

func TestListSignals_FiltersAndOrders(t *testing.T) {
	f := setup(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	f.storeSignal(t, "a", "S1", strPtr(models.DecisionApproved), base)
	f.storeSignal(t, "b", "S1", strPtr("REJECTED"), base.Add(time.Minute))
	f.storeSignal(t, "c", "S1", strPtr(models.DecisionApproved), base.Add(2*time.Minute))
	f.storeSignal(t, "pending", "S1", nil, base.Add(3*time.Minute))
	f.storeSignal(t, "other", "S2", strPtr(models.DecisionApproved), base)

	route := f.handler.ListSignalsRoute()
	params := map[string]string{"strategy_id": "S1"}

	resp := call(route, "key-s1", nil, params)
	require.Equal(t, http.StatusOK, resp.Status)

	var out struct {
		StrategyID string           `json:"strategy_id"`
		Count      int              `json:"count"`
		Signals    []map[string]any `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, "S1", out.StrategyID)
	assert.Equal(t, 3, out.Count)
	require.Len(t, out.Signals, 3)
	assert.Equal(t, "c", out.Signals[0]["signal_id"])
	assert.Equal(t, "b", out.Signals[1]["signal_id"])
	assert.Equal(t, "a", out.Signals[2]["signal_id"])

	resp = call(route, "key-s1", map[string]string{"status": "EXECUTED"}, params)
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, 2, out.Count)

	resp = call(route, "key-s1", map[string]string{"status": "REJECTED"}, params)
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "b", out.Signals[0]["signal_id"])

	resp = call(route, "key-s1", map[string]string{"limit": "1"}, params)
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, 1, out.Count)
}

func TestListSignals_Empty(t *testing.T) {
	f := setup(t)

	resp := call(f.handler.ListSignalsRoute(), "key-s1", nil, map[string]string{"strategy_id": "S1"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"strategy_id":"S1","count":0,"signals":[]}`, string(resp.Body))
}

func TestListSignals_Limit(t *testing.T) {
	f := setup(t)
	route := f.handler.ListSignalsRoute()
	params := map[string]string{"strategy_id": "S1"}

	for _, limit := range []string{"0", "501", "abc", "-3"} {
		resp := call(route, "key-s1", map[string]string{"limit": limit}, params)
		assert.Equal(t, http.StatusBadRequest, resp.Status, limit)
		assert.Equal(t, "limit must be between 1 and 500", detail(t, resp), limit)
	}

	for _, limit := range []string{"1", "500", "20abc"} {
		resp := call(route, "key-s1", map[string]string{"limit": limit}, params)
		assert.Equal(t, http.StatusOK, resp.Status, limit)
	}
}

func TestListSignals_Status(t *testing.T) {
	f := setup(t)

	resp := call(f.handler.ListSignalsRoute(), "key-s1",
		map[string]string{"status": "executed"}, map[string]string{"strategy_id": "S1"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "status must be EXECUTED or REJECTED", detail(t, resp))
}

func TestParseLimit(t *testing.T) {
	n, ok := parseLimit("")
	assert.True(t, ok)
	assert.Equal(t, DefaultLimit, n)

	n, ok = parseLimit(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	n, ok = parseLimit("7.9")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = parseLimit("+")
	assert.False(t, ok)
}

func TestGuardOrder(t *testing.T) {
	f := setup(t)
	route := f.handler.ListSignalsRoute()

	// 未认证优先于参数校验
	resp := call(route, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "API key required (X-API-Key header)", detail(t, resp))

	resp = call(route, "wrong", nil, map[string]string{"strategy_id": "S1"})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "Invalid API key", detail(t, resp))

	resp = call(route, "key-s1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "strategy_id is required", detail(t, resp))

	// 授权优先于 limit 校验
	resp = call(route, "key-s1", map[string]string{"limit": "0"}, map[string]string{"strategy_id": "S2"})
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "Not authorized for strategy S2", detail(t, resp))

	assert.Empty(t, f.usage.calls)
}

func TestSignalDetail(t *testing.T) {
	f := setup(t)
	f.storeSignal(t, "sig-1", "S1", strPtr(models.DecisionApproved), time.Now().UTC())
	f.storeSignal(t, "sig-2", "S2", nil, time.Now().UTC())

	route := f.handler.SignalDetailRoute()

	resp := call(route, "key-s1", nil, map[string]string{"strategy_id": "S1", "signal_id": "sig-1"})
	require.Equal(t, http.StatusOK, resp.Status)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &doc))
	assert.Equal(t, "sig-1", doc["signal_id"])

	resp = call(route, "key-s1", nil, map[string]string{"strategy_id": "S1", "signal_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Signal not found", detail(t, resp))

	resp = call(route, "key-s1", nil, map[string]string{"strategy_id": "S1", "signal_id": "sig-2"})
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "Signal does not belong to this strategy", detail(t, resp))

	resp = call(route, "key-s1", nil, map[string]string{"strategy_id": "S1"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "signal_id is required", detail(t, resp))

	require.Len(t, f.usage.calls, 4)
	assert.Equal(t, usageCall{"S1", RouteSignalDetail, http.StatusOK}, f.usage.calls[0])
	assert.Equal(t, http.StatusNotFound, f.usage.calls[1].status)
	assert.Equal(t, http.StatusForbidden, f.usage.calls[2].status)
}

func TestPositions_NoSnapshot(t *testing.T) {
	f := setup(t)

	resp := call(f.handler.PositionsRoute(), "key-s1", nil, map[string]string{"strategy_id": "S1"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"strategy_id":"S1","count":0,"positions":[]}`, string(resp.Body))
}

func TestPositions_LatestSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.accounts.Create(ctx, &models.AccountState{
		Timestamp:     base,
		OpenPositions: datatypes.JSON(`[{"strategy_id":"S1","instrument":"OLD"}]`),
	}))
	require.NoError(t, f.accounts.Create(ctx, &models.AccountState{
		Timestamp: base.Add(time.Hour),
		OpenPositions: datatypes.JSON(`[
			{"strategy_id":"S1","instrument":"AAPL","direction":"LONG","quantity":10,"avg_price":"150.5","current_price":155,"unrealized_pnl":45,"opened_at":"2024-02-01T10:00:00Z"},
			{"strategy_id":"S1","direction":"short","opened_at":1706781600},
			{"strategy_id":"S2","instrument":"MSFT","direction":"LONG"}
		]`),
	}))

	resp := call(f.handler.PositionsRoute(), "key-s1", nil, map[string]string{"strategy_id": "S1"})
	require.Equal(t, http.StatusOK, resp.Status)

	var out PositionList
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, "S1", out.StrategyID)
	require.Equal(t, 2, out.Count)

	p := out.Positions[0]
	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, "LONG", p.Side)
	assert.Equal(t, 10.0, p.Quantity)
	assert.Equal(t, 150.5, p.EntryPrice)
	assert.Equal(t, 155.0, p.CurrentPrice)
	assert.Equal(t, 45.0, p.UnrealizedPnl)
	assert.Equal(t, "2024-02-01T10:00:00Z", p.OpenedAt)

	p = out.Positions[1]
	assert.Equal(t, "UNKNOWN", p.Ticker)
	assert.Equal(t, "SHORT", p.Side)
	assert.Equal(t, 0.0, p.Quantity)
	assert.Equal(t, 0.0, p.EntryPrice)
	assert.Equal(t, "2024-02-01T10:00:00.000Z", p.OpenedAt)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 0, number(nil))
	assert.Equal(t, 0, number(""))
	assert.Equal(t, 150.5, number("150.5"))
	assert.Equal(t, float64(10), number(10))
	assert.Equal(t, "abc", number("abc"))
}

func TestFormatOpenedAt(t *testing.T) {
	assert.Equal(t, "", formatOpenedAt(nil))
	assert.Equal(t, "", formatOpenedAt(""))
	assert.Equal(t, "", formatOpenedAt(false))
	assert.Equal(t, "2024-02-01T10:00:00.000Z", formatOpenedAt(json.Number("1706781600000")))
	assert.Equal(t, "2024-02-01T10:00:00.000Z",
		formatOpenedAt(map[string]any{"$date": "2024-02-01T11:00:00+01:00"}))
	assert.Equal(t, "2024-02-01T10:00:00.000Z",
		formatOpenedAt(map[string]any{"$date": map[string]any{"$numberLong": "1706781600000"}}))
	assert.Equal(t, "2024-02-01T10:00:00.000Z",
		formatOpenedAt(time.Date(2024, 2, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600))))
	assert.Equal(t, "true", formatOpenedAt(true))
}

func TestPreflightAndMethod(t *testing.T) {
	f := setup(t)
	route := f.handler.PositionsRoute()

	resp := route.Serve(context.Background(), httpx.Event{Method: http.MethodOptions})
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = route.Serve(context.Background(), httpx.Event{Method: http.MethodPost})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
}
