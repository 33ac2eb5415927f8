package cleaner

import (
	"context"
	"time"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/pkg/goplus"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// StagingStore staging 原始信号的保留清理
type StagingStore interface {
	HasStaging() bool
	DeleteStagingBefore(ctx context.Context, before time.Time) (int64, error)
	CountStaging(ctx context.Context) (int64, error)
	DeleteStagingOldest(ctx context.Context, n int64) (int64, error)
}

// UsageStore 访问记录的保留清理
type UsageStore interface {
	DeleteSeenBefore(ctx context.Context, before time.Time) (int64, error)
}

// Cleaner 数据清理器，定时清理历史数据
// 正式环境的原始信号由下游消费，不在此清理
type Cleaner struct {
	staging StagingStore
	usage   UsageStore
	policy  config.Retention
	done    chan struct{}
	now     func() time.Time
}

// NewCleaner 创建清理器
func NewCleaner(staging StagingStore, usage UsageStore, policy config.Retention) *Cleaner {
	if policy.Interval <= 0 {
		policy.Interval = time.Hour
	}
	return &Cleaner{
		staging: staging,
		usage:   usage,
		policy:  policy,
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start 启动清理任务
func (c *Cleaner) Start() {
	goplus.Go(func() {
		ticker := time.NewTicker(c.policy.Interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", c.policy.Interval).Msg("cleaner started")

		// 启动时立即执行一次
		c.clean()

		for {
			select {
			case <-ticker.C:
				c.clean()
			case <-c.done:
				logger.Info().Msg("cleaner stopped")
				return
			}
		}
	})
}

// Stop 停止清理器
func (c *Cleaner) Stop() {
	close(c.done)
}

// clean 执行清理任务
func (c *Cleaner) clean() {
	logger.Debug().Msg("running cleanup task")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := c.cleanStagingSignals(ctx); err != nil {
		logger.Error().Err(err).Msg("clean staging signals failed")
	}

	if err := c.cleanUsage(ctx); err != nil {
		logger.Error().Err(err).Msg("clean strategy usage failed")
	}
}

// cleanStagingSignals 时间优先，数量兜底
func (c *Cleaner) cleanStagingSignals(ctx context.Context) error {
	if c.staging == nil || !c.staging.HasStaging() {
		return nil
	}

	if c.policy.StagingRawMaxAge > 0 {
		cutoff := c.now().Add(-c.policy.StagingRawMaxAge)
		deleted, err := c.staging.DeleteStagingBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.Info().
				Int64("deleted", deleted).
				Time("cutoff", cutoff).
				Msg("cleaned old staging signals by time")
		}
	}

	if c.policy.StagingRawMaxRows <= 0 {
		return nil
	}

	count, err := c.staging.CountStaging(ctx)
	if err != nil {
		return err
	}
	if count <= c.policy.StagingRawMaxRows {
		return nil
	}

	deleted, err := c.staging.DeleteStagingOldest(ctx, count-c.policy.StagingRawMaxRows)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info().
			Int64("deleted", deleted).
			Int64("total", count).
			Int64("limit", c.policy.StagingRawMaxRows).
			Msg("cleaned excess staging signals by count")
	}

	return nil
}

// cleanUsage 清理长期未访问的策略记录
func (c *Cleaner) cleanUsage(ctx context.Context) error {
	if c.usage == nil || c.policy.UsageMaxAge <= 0 {
		return nil
	}

	cutoff := c.now().Add(-c.policy.UsageMaxAge)
	deleted, err := c.usage.DeleteSeenBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("cleaned stale strategy usage")
	}

	return nil
}
