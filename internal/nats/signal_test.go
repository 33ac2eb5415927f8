package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalReceived_Marshal(t *testing.T) {
	msg := &SignalReceived{
		Source:       SourceGateway,
		ForwardedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Environment:  "production",
		SignalID:     "sig-1",
		StrategyName: "S1",
		Signal:       json.RawMessage(`{"signal_id":"sig-1","price":150.25}`),
	}

	data, err := msg.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source": "signal_gateway",
		"forwarded_at": "2024-01-01T00:00:00Z",
		"environment": "production",
		"signal_id": "sig-1",
		"strategy_name": "S1",
		"original_signal": {"signal_id":"sig-1","price":150.25}
	}`, string(data))
}

func TestNewPublisher_Unreachable(t *testing.T) {
	_, err := NewPublisher("nats://127.0.0.1:1", "signal_gateway.signal_received")
	assert.Error(t, err)
}
