package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	// 信号接收
	signalsIngested *prometheus.CounterVec
	ingestRejected  *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	// 缓存
	cacheHitTotal  *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec
	// 下游转发
	signalsForwarded *prometheus.CounterVec
	natsConnected    prometheus.Gauge
	// 批量写入器
	usageQueueFullTotal    prometheus.Counter
	batchWriteSize         prometheus.Histogram
	batchWriteDurationSecs prometheus.Histogram
}

// NewMetrics 创建指标收集器并注册到 registerer
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "请求耗时分布（秒）",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route"},
		),
		signalsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_ingested_total",
				Help:      "Total number of signals persisted",
			},
			[]string{"environment"},
		),
		ingestRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_rejected_total",
				Help:      "被拒绝的信号总数（按原因）",
			},
			[]string{"reason"}, // invalid_json, missing_fields, passphrase, too_large, storage
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of API key authentication failures",
			},
			[]string{"reason"}, // missing, invalid, forbidden
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hit_total",
				Help:      "缓存命中总数（按缓存类型）",
			},
			[]string{"cache_type"},
		),
		cacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_miss_total",
				Help:      "缓存未命中总数（按缓存类型）",
			},
			[]string{"cache_type"},
		),
		signalsForwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_forwarded_total",
				Help:      "Total number of signals forwarded to NATS",
			},
			[]string{"outcome"}, // success, error, dropped
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		usageQueueFullTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_queue_full_total",
				Help:      "访问记录队列满丢弃总数",
			},
		),
		batchWriteSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_size",
				Help:      "批量写入大小分布",
				Buckets:   []float64{1, 10, 25, 50, 100, 200, 500},
			},
		),
		batchWriteDurationSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_duration_seconds",
				Help:      "批量写入耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
	}

	registerer.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.signalsIngested,
		m.ingestRejected,
		m.authFailures,
		m.cacheHitTotal,
		m.cacheMissTotal,
		m.signalsForwarded,
		m.natsConnected,
		m.usageQueueFullTotal,
		m.batchWriteSize,
		m.batchWriteDurationSecs,
	)

	return m
}

func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	m.requestsTotal.WithLabelValues(route, statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) IncSignalsIngested(environment string) {
	m.signalsIngested.WithLabelValues(environment).Inc()
}

func (m *Metrics) IncIngestRejected(reason string) {
	m.ingestRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncCacheHit(cacheType string) {
	m.cacheHitTotal.WithLabelValues(cacheType).Inc()
}

func (m *Metrics) IncCacheMiss(cacheType string) {
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}

func (m *Metrics) IncSignalsForwarded(outcome string) {
	m.signalsForwarded.WithLabelValues(outcome).Inc()
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

func (m *Metrics) IncUsageQueueFull() {
	m.usageQueueFullTotal.Inc()
}

func (m *Metrics) ObserveBatchWriteSize(size int) {
	m.batchWriteSize.Observe(float64(size))
}

func (m *Metrics) ObserveBatchWriteDuration(duration float64) {
	m.batchWriteDurationSecs.Observe(duration)
}

// statusLabel 状态码按类别聚合，避免标签基数过大
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("signal_gateway", prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}
