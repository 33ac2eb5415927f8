package dao

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

type UsageDAO struct {
	conn  dal.Connector
	table string
}

func NewUsageDAO(conn dal.Connector, table string) *UsageDAO {
	return &UsageDAO{conn: conn, table: table}
}

// TableName 批量写入器按表名分组
func (d *UsageDAO) TableName() string {
	return d.table
}

// BatchUpsert 批量 upsert 访问记录
func (d *UsageDAO) BatchUpsert(ctx context.Context, list []*models.StrategyUsage) error {
	if len(list) == 0 {
		return nil
	}

	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_id"}, {Name: "route"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_status", "last_seen_at", "updated_at"}),
	}).Create(list).Error
}

// Get 查询某策略某路由的访问记录
func (d *UsageDAO) Get(ctx context.Context, strategyID, route string) (*models.StrategyUsage, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return nil, err
	}

	var u models.StrategyUsage
	if err = db.Where("strategy_id = ? AND route = ?", strategyID, route).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// DeleteSeenBefore 删除最后访问早于 before 的记录
func (d *UsageDAO) DeleteSeenBefore(ctx context.Context, before time.Time) (int64, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return 0, err
	}

	result := db.Where("last_seen_at < ?", before).Delete(&models.StrategyUsage{})
	return result.RowsAffected, result.Error
}
