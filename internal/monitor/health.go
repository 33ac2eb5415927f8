package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-signal-gateway/pkg/goplus"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// DatabaseRef 数据库探活
type DatabaseRef interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数形式的 DatabaseRef
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// StatsRef 可在 /status 中展示统计的组件
type StatsRef interface {
	Stats() map[string]any
}

// HealthServer HTTP 健康检查和指标服务器
type HealthServer struct {
	addr         string
	db           DatabaseRef
	publisher    PublisherRef
	server       *http.Server
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
	pingTimeout  time.Duration
	caches       map[string]StatsRef
}

// NewHealthServer 创建健康检查服务器，publisher 为 nil 表示未启用转发
func NewHealthServer(addr string, db DatabaseRef, publisher PublisherRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		db:           db,
		publisher:    publisher,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
		pingTimeout:  2 * time.Second,
		caches:       make(map[string]StatsRef),
	}
}

// RegisterCache 注册缓存，其统计出现在 /status 的 caches 下
func (h *HealthServer) RegisterCache(name string, c StatsRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.caches[name] = c
}

// Handler 路由，测试时可直接使用
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.HandleFunc("/status", h.statusHandler)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start 启动HTTP服务器
func (h *HealthServer) Start() error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", h.addr).Msg("health server started")

	return nil
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// readyHandler 数据库可用才算就绪
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil || !h.isHealthy() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) isHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

func (h *HealthServer) ping(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.pingTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}

func (h *HealthServer) getHealthStatus(ctx context.Context) HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	var caches map[string]map[string]any
	if len(h.caches) > 0 {
		caches = make(map[string]map[string]any, len(h.caches))
		for name, c := range h.caches {
			caches[name] = c.Stats()
		}
	}
	h.mu.RUnlock()

	db := DatabaseStatus{Connected: true}
	if err := h.ping(ctx); err != nil {
		db = DatabaseStatus{Connected: false, Error: err.Error()}
	}

	nats := NATSStatus{}
	if h.publisher != nil {
		nats.Enabled = true
		nats.Connected = h.publisher.IsConnected()
		GetMetrics().SetNATSConnected(nats.Connected)
	}

	return HealthStatus{
		Healthy:      healthy && db.Connected,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		Database:     db,
		NATS:         nats,
		Caches:       caches,
	}
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool           `json:"healthy"`
	HealthySince string         `json:"healthy_since"`
	Uptime       string         `json:"uptime"`
	Database     DatabaseStatus `json:"database"`
	NATS         NATSStatus     `json:"nats"`

	Caches map[string]map[string]any `json:"caches,omitempty"`
}

type DatabaseStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// NATSStatus NATS连接状态，未启用时 enabled=false
type NATSStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}
