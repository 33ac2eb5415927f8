package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCORS(t *testing.T, resp *Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "Content-Type, X-API-Key", resp.Headers["Access-Control-Allow-Headers"])
	assert.Equal(t, "GET, POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func detail(t *testing.T, resp *Response) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body.Detail
}

func TestHeader_CaseInsensitive(t *testing.T) {
	h := NewHeader(map[string]string{"X-Api-Key": "k1", "Content-Type": "application/json"})
	assert.Equal(t, "k1", h.Get("x-api-key"))
	assert.Equal(t, "k1", h.Get("X-API-KEY"))
	assert.Equal(t, "", h.Get("authorization"))
}

func TestRequest_Param(t *testing.T) {
	req := NewRequest(Event{
		Method:     "get",
		Query:      map[string]string{"limit": "10"},
		PathParams: map[string]string{"strategy_id": "S1", "limit": "99"},
	})
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "10", req.Param("limit"))
	assert.Equal(t, "S1", req.Param("strategy_id"))
	assert.Equal(t, "", req.Param("status"))
}

func TestRequest_HostFallback(t *testing.T) {
	req := NewRequest(Event{Headers: map[string]string{"Host": "staging.example.com"}})
	assert.Equal(t, "staging.example.com", req.Host)
}

func TestRequest_JSONObject(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"object", `{"a":1}`, true},
		{"malformed", `{"a":`, false},
		{"array", `[1,2]`, false},
		{"null", `null`, false},
		{"empty", ``, false},
		{"trailing", `{"a":1} {"b":2}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := NewRequest(Event{Body: []byte(tt.body)}).JSONObject()
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, json.Number("1"), obj["a"])
				return
			}
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, http.StatusBadRequest, e.Status)
			assert.Equal(t, "Invalid JSON format", e.Detail)
		})
	}
}

func TestAsError(t *testing.T) {
	e := AsError(Forbidden("Not authorized for strategy %s", "S2"))
	assert.Equal(t, http.StatusForbidden, e.Status)
	assert.Equal(t, "Not authorized for strategy S2", e.Detail)

	e = AsError(errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, "Internal server error: connection refused", e.Detail)
}

func TestRoute_Serve(t *testing.T) {
	rt := &Route{
		Name: "test",
		Methods: map[string]HandlerFunc{
			http.MethodGet: func(ctx context.Context, req *Request) (any, error) {
				switch req.Param("mode") {
				case "fail":
					return nil, NotFound("Signal not found")
				case "panic":
					panic("boom")
				case "raw":
					return nil, errors.New("db down")
				}
				return map[string]any{"ok": true, "url": "a<b>&c"}, nil
			},
		},
	}
	ctx := context.Background()

	t.Run("options short-circuit", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodOptions})
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Empty(t, resp.Body)
		assertCORS(t, resp)
	})

	t.Run("success", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodGet})
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.JSONEq(t, `{"ok":true,"url":"a<b>&c"}`, string(resp.Body))
		assert.Contains(t, string(resp.Body), "a<b>&c")
		assertCORS(t, resp)
	})

	t.Run("typed error", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodGet, Query: map[string]string{"mode": "fail"}})
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.Equal(t, "Signal not found", detail(t, resp))
		assertCORS(t, resp)
	})

	t.Run("untyped error", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodGet, Query: map[string]string{"mode": "raw"}})
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Equal(t, "Internal server error: db down", detail(t, resp))
	})

	t.Run("panic", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodGet, Query: map[string]string{"mode": "panic"}})
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Equal(t, "Internal server error: boom", detail(t, resp))
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := rt.Serve(ctx, Event{Method: http.MethodDelete})
		assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
		assert.Equal(t, "Method not allowed", detail(t, resp))
		assertCORS(t, resp)
	})
}
