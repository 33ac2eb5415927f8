package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawSignal 原始信号表，只追加不修改
// 正式表与 staging 表共用此模型，索引名随表名生成
type RawSignal struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// 便于检索的冗余列
	SignalID        string `gorm:"column:signal_id;type:varchar(128);not null;index" json:"signal_id"`
	StrategyName    string `gorm:"column:strategy_name;type:varchar(128);not null;index" json:"strategy_name"`
	SignalSentEpoch int64  `gorm:"column:signal_sent_epoch;not null" json:"signal_sent_epoch"`
	Environment     string `gorm:"column:environment;type:varchar(16);not null;comment:staging/production" json:"environment"`
	APIEndpoint     string `gorm:"column:api_endpoint;type:varchar(255);not null" json:"api_endpoint"`
	SignalProcessed bool   `gorm:"column:signal_processed;not null;default:false" json:"signal_processed"`

	ReceivedAt time.Time `gorm:"column:received_at;not null;index" json:"received_at"`

	// 完整文档
	Document datatypes.JSON `gorm:"column:document;not null" json:"document"`
}

func (RawSignal) TableName() string {
	return "trading_signals_raw"
}
