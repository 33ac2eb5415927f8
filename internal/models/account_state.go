package models

import (
	"time"

	"gorm.io/datatypes"
)

// AccountState 账户快照，取时间戳最新的一条作为当前状态
type AccountState struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     time.Time      `gorm:"column:timestamp;not null;index:idx_account_ts" json:"timestamp"`
	OpenPositions datatypes.JSON `gorm:"column:open_positions" json:"open_positions"`
}

func (AccountState) TableName() string {
	return "account_state"
}
