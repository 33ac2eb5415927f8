package models

import (
	"time"

	"gorm.io/datatypes"
)

// 决策结果
const (
	DecisionApproved = "APPROVED"

	StatusExecuted = "EXECUTED"
	StatusRejected = "REJECTED"
)

// StoredSignal 经过下游决策的信号，由下游系统写入，本服务只读
type StoredSignal struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	SignalID     string `gorm:"column:signal_id;type:varchar(128);not null;index:idx_store_signal_id" json:"signal_id"`
	StrategyID   string `gorm:"column:strategy_id;type:varchar(128);not null;index:idx_store_strategy_id" json:"strategy_id"`
	StrategyName string `gorm:"column:strategy_name;type:varchar(128);not null;index:idx_store_strategy_name;comment:signal_data.strategy_name" json:"strategy_name"`

	// 为空表示尚未决策
	Decision *string `gorm:"column:decision;type:varchar(32);comment:cerebro_decision.decision" json:"decision"`

	ReceivedAt time.Time      `gorm:"column:received_at;not null;index:idx_store_received_at" json:"received_at"`
	Document   datatypes.JSON `gorm:"column:document;not null" json:"document"`
}

func (StoredSignal) TableName() string {
	return "signal_store"
}

// Decided 是否已有决策
func (s *StoredSignal) Decided() bool {
	return s.Decision != nil
}
