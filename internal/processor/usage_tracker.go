package processor

import (
	"context"
	"errors"
	"time"

	"github.com/utrading/utrading-signal-gateway/internal/models"
	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// UsageItem 策略访问记录
type UsageItem struct {
	Table string
	Usage *models.StrategyUsage
}

func (i UsageItem) TableName() string {
	return i.Table
}

// DedupKey 同一策略同一路由只保留最后一次
func (i UsageItem) DedupKey() string {
	return "su:" + i.Usage.StrategyID + ":" + i.Usage.Route
}

// UsageStore 访问记录存储
type UsageStore interface {
	TableName() string
	BatchUpsert(ctx context.Context, list []*models.StrategyUsage) error
}

// UsageTracker 通过批量写入器异步记录策略访问
type UsageTracker struct {
	writer *BatchWriter
	table  string
}

// NewUsageTracker 在 writer 上注册访问记录表
func NewUsageTracker(writer *BatchWriter, store UsageStore) *UsageTracker {
	table := store.TableName()
	writer.RegisterSink(table, func(items []BatchItem) error {
		list := make([]*models.StrategyUsage, 0, len(items))
		for _, item := range items {
			if u, ok := item.(UsageItem); ok {
				list = append(list, u.Usage)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.BatchUpsert(ctx, list)
	})

	return &UsageTracker{writer: writer, table: table}
}

// Record 记录一次访问，不阻塞调用方
func (t *UsageTracker) Record(strategyID, route string, status int) {
	err := t.writer.Add(UsageItem{
		Table: t.table,
		Usage: &models.StrategyUsage{
			StrategyID: strategyID,
			Route:      route,
			LastStatus: status,
			LastSeenAt: time.Now().UTC(),
		},
	})
	if errors.Is(err, ErrQueueFull) {
		monitor.IncUsageQueueFull()
		logger.Warn().Str("strategy_id", strategyID).Str("route", route).Msg("usage queue full, dropping")
	}
}
