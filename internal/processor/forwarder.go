package processor

import (
	"encoding/json"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/internal/nats"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// SignalPublisher 下游发布接口
type SignalPublisher interface {
	PublishSignal(msg *nats.SignalReceived) error
}

// SignalForwarder 入库成功的信号异步转发到下游
// 转发失败只记录日志和指标，不影响接收结果
type SignalForwarder struct {
	publisher SignalPublisher
	pool      *ants.Pool
}

// NewSignalForwarder 创建转发器，协程池满时直接丢弃
func NewSignalForwarder(publisher SignalPublisher, poolSize int) (*SignalForwarder, error) {
	if poolSize <= 0 {
		poolSize = 16
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &SignalForwarder{
		publisher: publisher,
		pool:      pool,
	}, nil
}

// Forward 提交转发任务
func (f *SignalForwarder) Forward(environment, signalID, strategyName string, document []byte) {
	msg := &nats.SignalReceived{
		Source:       nats.SourceGateway,
		ForwardedAt:  time.Now().UTC(),
		Environment:  environment,
		SignalID:     signalID,
		StrategyName: strategyName,
		Signal:       json.RawMessage(document),
	}

	err := f.pool.Submit(func() {
		if err := f.publisher.PublishSignal(msg); err != nil {
			monitor.IncSignalsForwarded("error")
			logger.Warn().Err(err).Str("signal_id", signalID).Msg("forward signal failed")
			return
		}
		monitor.IncSignalsForwarded("success")
	})
	if err != nil {
		// ants.ErrPoolOverload / ants.ErrPoolClosed
		monitor.IncSignalsForwarded("dropped")
		logger.Warn().Err(err).Str("signal_id", signalID).Msg("forwarder pool unavailable, dropping signal")
	}
}

// Close 等待进行中的转发完成
func (f *SignalForwarder) Close(timeout time.Duration) error {
	return f.pool.ReleaseTimeout(timeout)
}
