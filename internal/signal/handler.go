package signal

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gorm.io/datatypes"

	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/models"
	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"

	// TimeFormat 响应与文档中的时间格式，UTC 毫秒
	TimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// RawStore 原始信号存储
type RawStore interface {
	Insert(ctx context.Context, sig *models.RawSignal) error
}

// Forwarder 入库后的下游转发，尽力而为
type Forwarder interface {
	Forward(environment, signalID, strategyName string, document []byte)
}

type Config struct {
	ServiceName  string
	MaxBodyBytes int64
	Passphrases  func() []string // 每次请求读取，支持热更新
}

// Handler 信号接收
type Handler struct {
	store     RawStore
	forwarder Forwarder
	cfg       Config
	now       func() time.Time
}

// NewHandler forwarder 可以为 nil
func NewHandler(store RawStore, forwarder Forwarder, cfg Config) *Handler {
	return &Handler{
		store:     store,
		forwarder: forwarder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Summary 从第一条腿提取的摘要
type Summary struct {
	Ticker any `json:"ticker"`
	Action any `json:"action"`
	Price  any `json:"price"`
}

// IngestResult 接收成功的响应
type IngestResult struct {
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	Timestamp     string  `json:"timestamp"`
	SignalSummary Summary `json:"signal_summary"`
}

// StatusResult 服务状态
type StatusResult struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// Route GET 返回服务状态，POST 接收信号
func (h *Handler) Route() *httpx.Route {
	return &httpx.Route{
		Name: "ingest",
		Methods: map[string]httpx.HandlerFunc{
			http.MethodGet: func(ctx context.Context, req *httpx.Request) (any, error) {
				return h.Status(req.Host), nil
			},
			http.MethodPost: func(ctx context.Context, req *httpx.Request) (any, error) {
				return h.Ingest(ctx, req.Body, req.Host)
			},
		},
	}
}

// Status 服务状态检查
func (h *Handler) Status(host string) *StatusResult {
	env := "main"
	switch {
	case strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1"):
		env = "local"
	case strings.Contains(host, "staging"):
		env = EnvStaging
	}

	return &StatusResult{
		Service:     h.cfg.ServiceName,
		Status:      "active",
		Timestamp:   h.now().UTC().Format(TimeFormat),
		Environment: env,
	}
}

// Ingest 校验、规范化并持久化一条信号，成功时恰好写入一条记录
func (h *Handler) Ingest(ctx context.Context, body []byte, host string) (*IngestResult, error) {
	if h.cfg.MaxBodyBytes > 0 && int64(len(body)) > h.cfg.MaxBodyBytes {
		monitor.IncIngestRejected("too_large")
		return nil, httpx.BadRequest("Request body too large (max %d bytes)", h.cfg.MaxBodyBytes)
	}

	doc, err := httpx.NewRequest(httpx.Event{Body: body}).JSONObject()
	if err != nil {
		monitor.IncIngestRejected("invalid_json")
		return nil, err
	}

	if missing := missingFields(doc); len(missing) > 0 {
		monitor.IncIngestRejected("missing_fields")
		return nil, httpx.BadRequest("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if !h.passphraseAccepted(doc["passphrase"]) {
		monitor.IncIngestRejected("passphrase")
		logger.Warn().Str("host", host).Msg("invalid passphrase provided")
		return nil, httpx.Unauthorized("Unauthorized: Invalid passphrase")
	}

	legs := normalizeLegs(doc)

	now := h.now().UTC()
	env := environmentOf(host)
	if host == "" {
		host = "unknown"
	}
	doc["received_at"] = now.Format(TimeFormat)
	doc["signal_processed"] = false
	doc["api_endpoint"] = host
	doc["environment"] = env

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, httpx.Internal(fmt.Errorf("encode signal: %w", err))
	}

	sig := &models.RawSignal{
		SignalID:        cast.ToString(doc["signal_id"]),
		StrategyName:    cast.ToString(doc["strategy_name"]),
		SignalSentEpoch: epochOf(doc["signal_sent_epoch"]),
		Environment:     env,
		APIEndpoint:     host,
		SignalProcessed: false,
		ReceivedAt:      now,
		Document:        datatypes.JSON(data),
	}
	if err = h.store.Insert(ctx, sig); err != nil {
		monitor.IncIngestRejected("storage")
		return nil, httpx.Internal(fmt.Errorf("store signal: %w", err))
	}
	monitor.IncSignalsIngested(env)

	first := legs.First()
	summary := Summary{
		Ticker: first.first("UNKNOWN", fieldInstrument, fieldTicker),
		Action: first.first("UNKNOWN", fieldAction),
		Price:  first.first("N/A", fieldPrice),
	}

	logger.Info().
		Str("signal_id", sig.SignalID).
		Str("strategy_name", sig.StrategyName).
		Str("environment", env).
		Interface("ticker", summary.Ticker).
		Interface("action", summary.Action).
		Interface("price", summary.Price).
		Msg("signal received")

	if h.forwarder != nil {
		h.forwarder.Forward(env, sig.SignalID, sig.StrategyName, data)
	}

	return &IngestResult{
		Status:        "success",
		Message:       "Signal received and processed",
		Timestamp:     now.Format(TimeFormat),
		SignalSummary: summary,
	}, nil
}

func (h *Handler) passphraseAccepted(v any) bool {
	got, ok := v.(string)
	if !ok {
		return false
	}

	accepted := false
	for _, p := range h.cfg.Passphrases() {
		if subtle.ConstantTimeCompare([]byte(got), []byte(p)) == 1 {
			accepted = true
		}
	}
	return accepted
}

// normalizeLegs 将旧版单腿字段 signal 复制到 signal_legs，并统一为数组
// signal 始终原样保留，signal_legs 存在时以它为准
func normalizeLegs(doc map[string]any) Legs {
	legs := parseLegs(doc[fieldLegs])
	if !legs.Present() {
		legacy := parseLegs(doc[fieldLegacyLeg])
		if !legacy.Present() {
			return legs
		}
		legs = legacy
	}

	doc[fieldLegs] = legs.Canonical()
	return legs
}

// environmentOf 按 host 判断环境
func environmentOf(host string) string {
	if strings.Contains(host, "staging") {
		return EnvStaging
	}
	return EnvProduction
}

// epochOf 秒级时间戳，允许小数或字符串
func epochOf(v any) int64 {
	if n, err := cast.ToInt64E(v); err == nil {
		return n
	}
	return int64(cast.ToFloat64(v))
}
