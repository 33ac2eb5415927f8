package dao

import (
	"context"

	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

type StrategyDAO struct {
	conn  dal.Connector
	table string
}

func NewStrategyDAO(conn dal.Connector, table string) *StrategyDAO {
	return &StrategyDAO{conn: conn, table: table}
}

// FindByAPIKey 按 API Key 精确查找策略
func (d *StrategyDAO) FindByAPIKey(ctx context.Context, apiKey string) (*models.Strategy, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return nil, err
	}

	var s models.Strategy
	if err = db.Where("api_key = ?", apiKey).Take(&s).Error; err != nil {
		return nil, notFound(err)
	}
	// mysql 默认排序规则忽略大小写和尾部空格，这里逐字节再比一次
	if s.APIKey != apiKey {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Create 新建策略，仅供运维脚本和测试使用
func (d *StrategyDAO) Create(ctx context.Context, s *models.Strategy) error {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return err
	}
	return db.Create(s).Error
}
