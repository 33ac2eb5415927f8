package nats

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// Publisher NATS 发布器
type Publisher struct {
	*nats.Conn
	subject string
	mu      sync.RWMutex
	closed  bool
}

// NewPublisher 创建 NATS 发布器，断线后由客户端自动重连
func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("utrading-signal-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			monitor.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			monitor.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	monitor.SetNATSConnected(true)

	return &Publisher{
		Conn:    conn,
		subject: subject,
	}, nil
}

// PublishSignal 发布信号到配置的主题
func (p *Publisher) PublishSignal(msg *SignalReceived) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	return p.Publish(p.subject, data)
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && p.Conn.IsConnected()
}

// Close 排空后关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	monitor.SetNATSConnected(false)

	if p.Conn != nil {
		if err := p.Conn.Drain(); err != nil {
			p.Conn.Close()
			return err
		}
	}
	return nil
}
