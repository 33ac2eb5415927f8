package nats

import (
	"encoding/json"
	"time"
)

const SourceGateway = "signal_gateway"

// SignalReceived 入库成功后转发给下游的消息
type SignalReceived struct {
	Source       string          `json:"source"`
	ForwardedAt  time.Time       `json:"forwarded_at"`
	Environment  string          `json:"environment"`
	SignalID     string          `json:"signal_id"`
	StrategyName string          `json:"strategy_name"`
	Signal       json.RawMessage `json:"original_signal"` // 已入库的完整文档
}

// Marshal 序列化信号
func (s *SignalReceived) Marshal() ([]byte, error) {
	return json.Marshal(s)
}
