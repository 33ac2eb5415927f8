package query

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// SignalList 信号列表，文档原样返回
type SignalList struct {
	StrategyID string            `json:"strategy_id"`
	Count      int               `json:"count"`
	Signals    []json.RawMessage `json:"signals"`
}

// ListSignals 按策略列出已决策的信号，received_at 倒序
// 策略匹配的是文档内 signal_data.strategy_name，而不是顶层 strategy_id
func (h *Handler) ListSignals(ctx context.Context, req *httpx.Request, strategyID string) (any, error) {
	limit, ok := parseLimit(req.Param("limit"))
	if !ok {
		return nil, httpx.BadRequest("limit must be between 1 and %d", MaxLimit)
	}

	status := req.Param("status")
	switch status {
	case "", models.StatusExecuted, models.StatusRejected:
	default:
		return nil, httpx.BadRequest("status must be EXECUTED or REJECTED")
	}

	list, err := h.signals.List(ctx, strategyID, status, limit)
	if err != nil {
		return nil, storageError(err)
	}

	out := &SignalList{
		StrategyID: strategyID,
		Count:      len(list),
		Signals:    make([]json.RawMessage, 0, len(list)),
	}
	for _, s := range list {
		out.Signals = append(out.Signals, json.RawMessage(s.Document))
	}
	return out, nil
}

// SignalDetail 单条信号详情
// 不存在返回 404，属于其他策略返回 403
func (h *Handler) SignalDetail(ctx context.Context, req *httpx.Request, strategyID string) (any, error) {
	signalID := req.Param("signal_id")
	if signalID == "" {
		return nil, httpx.BadRequest("signal_id is required")
	}

	s, err := h.signals.FindBySignalID(ctx, signalID)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, httpx.NotFound("Signal not found")
	}
	if err != nil {
		return nil, storageError(err)
	}

	if s.StrategyID != strategyID {
		return nil, httpx.Forbidden("Signal does not belong to this strategy")
	}
	return json.RawMessage(s.Document), nil
}

// parseLimit 与宽松整数解析一致：取前导数字，空值使用默认值
func parseLimit(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLimit, true
	}

	end := 0
	if raw[0] == '+' || raw[0] == '-' {
		end = 1
	}
	for end < len(raw) && unicode.IsDigit(rune(raw[end])) {
		end++
	}

	n, err := strconv.Atoi(raw[:end])
	if err != nil || n < 1 || n > MaxLimit {
		return 0, false
	}
	return n, true
}
