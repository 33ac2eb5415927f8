package dao

import (
	"context"
	"time"

	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

// RawSignalDAO 原始信号写入，staging 表另有保留清理
type RawSignalDAO struct {
	conn         dal.Connector
	table        string
	stagingTable string
}

func NewRawSignalDAO(conn dal.Connector, table, stagingTable string) *RawSignalDAO {
	return &RawSignalDAO{conn: conn, table: table, stagingTable: stagingTable}
}

// TableFor 返回环境对应的表，未配置 staging 表时统一写正式表
func (d *RawSignalDAO) TableFor(environment string) string {
	if environment == "staging" && d.stagingTable != "" {
		return d.stagingTable
	}
	return d.table
}

// Insert 写入一条原始信号
func (d *RawSignalDAO) Insert(ctx context.Context, sig *models.RawSignal) error {
	db, err := table(ctx, d.conn, d.TableFor(sig.Environment))
	if err != nil {
		return err
	}
	return db.Create(sig).Error
}

// HasStaging 是否配置了独立的 staging 表
func (d *RawSignalDAO) HasStaging() bool {
	return d.stagingTable != ""
}

// DeleteStagingBefore 删除 staging 表中早于 before 的信号
func (d *RawSignalDAO) DeleteStagingBefore(ctx context.Context, before time.Time) (int64, error) {
	if !d.HasStaging() {
		return 0, nil
	}
	db, err := table(ctx, d.conn, d.stagingTable)
	if err != nil {
		return 0, err
	}

	result := db.Where("received_at < ?", before).Delete(&models.RawSignal{})
	return result.RowsAffected, result.Error
}

// CountStaging staging 表总条数
func (d *RawSignalDAO) CountStaging(ctx context.Context) (int64, error) {
	if !d.HasStaging() {
		return 0, nil
	}
	db, err := table(ctx, d.conn, d.stagingTable)
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.Count(&n).Error
	return n, err
}

// DeleteStagingOldest 按写入顺序删除 staging 表最旧的 n 条
func (d *RawSignalDAO) DeleteStagingOldest(ctx context.Context, n int64) (int64, error) {
	if !d.HasStaging() || n <= 0 {
		return 0, nil
	}
	db, err := table(ctx, d.conn, d.stagingTable)
	if err != nil {
		return 0, err
	}

	// 第 n+1 旧的 id 作为边界
	var boundary []uint
	if err = db.Order("id ASC").Offset(int(n)).Limit(1).Pluck("id", &boundary).Error; err != nil {
		return 0, err
	}

	del, err := table(ctx, d.conn, d.stagingTable)
	if err != nil {
		return 0, err
	}
	if len(boundary) > 0 {
		del = del.Where("id < ?", boundary[0])
	} else {
		del = del.Where("1 = 1")
	}

	result := del.Delete(&models.RawSignal{})
	return result.RowsAffected, result.Error
}
