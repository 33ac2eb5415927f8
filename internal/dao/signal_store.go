package dao

import (
	"context"

	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

// SignalStoreDAO 已决策信号，只读
type SignalStoreDAO struct {
	conn  dal.Connector
	table string
}

func NewSignalStoreDAO(conn dal.Connector, table string) *SignalStoreDAO {
	return &SignalStoreDAO{conn: conn, table: table}
}

// List 按策略名查询已有决策的信号，received_at 倒序
// status 为空时不过滤决策结果
func (d *SignalStoreDAO) List(ctx context.Context, strategyName, status string, limit int) ([]*models.StoredSignal, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return nil, err
	}

	db = db.Where("strategy_name = ? AND decision IS NOT NULL", strategyName)
	switch status {
	case models.StatusExecuted:
		db = db.Where("decision = ?", models.DecisionApproved)
	case models.StatusRejected:
		db = db.Where("decision <> ?", models.DecisionApproved)
	}

	var list []*models.StoredSignal
	if err = db.Order("received_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// FindBySignalID 按信号 ID 查询
func (d *SignalStoreDAO) FindBySignalID(ctx context.Context, signalID string) (*models.StoredSignal, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return nil, err
	}

	var s models.StoredSignal
	if err = db.Where("signal_id = ?", signalID).Take(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// Create 写入一条决策信号，仅供测试和数据回放使用
func (d *SignalStoreDAO) Create(ctx context.Context, s *models.StoredSignal) error {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return err
	}
	return db.Create(s).Error
}
