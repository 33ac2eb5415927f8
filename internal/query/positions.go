package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
)

// TimeFormat opened_at 的输出格式，UTC 毫秒
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Position 对外返回的持仓
type Position struct {
	Ticker        any    `json:"ticker"`
	Side          string `json:"side"`
	Quantity      any    `json:"quantity"`
	EntryPrice    any    `json:"entry_price"`
	CurrentPrice  any    `json:"current_price"`
	UnrealizedPnl any    `json:"unrealized_pnl"`
	OpenedAt      string `json:"opened_at"`
}

type PositionList struct {
	StrategyID string     `json:"strategy_id"`
	Count      int        `json:"count"`
	Positions  []Position `json:"positions"`
}

// Positions 最新账户快照中属于该策略的持仓，没有快照时返回空列表
func (h *Handler) Positions(ctx context.Context, req *httpx.Request, strategyID string) (any, error) {
	out := &PositionList{
		StrategyID: strategyID,
		Positions:  []Position{},
	}

	state, err := h.accounts.Latest(ctx)
	if errors.Is(err, dao.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, storageError(err)
	}

	records, err := decodePositions(state.OpenPositions)
	if err != nil {
		return nil, httpx.Internal(err)
	}

	for _, r := range records {
		if id, _ := r["strategy_id"].(string); id != strategyID {
			continue
		}
		out.Positions = append(out.Positions, formatPosition(r))
	}
	out.Count = len(out.Positions)

	return out, nil
}

func decodePositions(raw []byte) ([]map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode open_positions: %w", err)
	}
	return records, nil
}

func formatPosition(r map[string]any) Position {
	ticker := r["instrument"]
	if !truthy(ticker) {
		ticker = "UNKNOWN"
	}

	side := "SHORT"
	if d, _ := r["direction"].(string); d == "LONG" {
		side = "LONG"
	}

	return Position{
		Ticker:        ticker,
		Side:          side,
		Quantity:      number(r["quantity"]),
		EntryPrice:    number(r["avg_price"]),
		CurrentPrice:  number(r["current_price"]),
		UnrealizedPnl: number(r["unrealized_pnl"]),
		OpenedAt:      formatOpenedAt(r["opened_at"]),
	}
}

// number 缺失或为假值时为 0，可转换的值统一为 float64，其余原样返回
func number(v any) any {
	if !truthy(v) {
		return 0
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f
	}
	return v
}

// formatOpenedAt 字符串原样返回，时间戳转为 ISO-8601
func formatOpenedAt(v any) string {
	if !truthy(v) {
		return ""
	}

	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(TimeFormat)
	case json.Number:
		return fromEpoch(x)
	case map[string]any:
		// 扩展 JSON 日期 {"$date": ...}
		if d, ok := x["$date"]; ok {
			switch inner := d.(type) {
			case string:
				if t, err := time.Parse(time.RFC3339Nano, inner); err == nil {
					return t.UTC().Format(TimeFormat)
				}
				return inner
			case map[string]any:
				if n, ok := inner["$numberLong"]; ok {
					return fromEpochMillis(cast.ToInt64(n))
				}
			default:
				return fromEpochMillis(cast.ToInt64(inner))
			}
		}
	}
	return fmt.Sprint(v)
}

// fromEpoch 数值时间戳，大于 1e12 视为毫秒
func fromEpoch(n json.Number) string {
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f > 1e12 {
		return fromEpochMillis(int64(f))
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format(TimeFormat)
}

func fromEpochMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeFormat)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
