package dao

import (
	"context"

	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

type AccountStateDAO struct {
	conn  dal.Connector
	table string
}

func NewAccountStateDAO(conn dal.Connector, table string) *AccountStateDAO {
	return &AccountStateDAO{conn: conn, table: table}
}

// Latest 返回时间戳最新的账户快照，没有快照时返回 ErrNotFound
func (d *AccountStateDAO) Latest(ctx context.Context) (*models.AccountState, error) {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return nil, err
	}

	var s models.AccountState
	if err = db.Order("timestamp DESC").Limit(1).Take(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (d *AccountStateDAO) Create(ctx context.Context, s *models.AccountState) error {
	db, err := table(ctx, d.conn, d.table)
	if err != nil {
		return err
	}
	return db.Create(s).Error
}
