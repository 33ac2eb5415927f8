package models

import "time"

// StrategyUsage 策略最近一次访问记录
type StrategyUsage struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StrategyID string    `gorm:"column:strategy_id;type:varchar(128);not null;uniqueIndex:uidx_usage_strategy_route" json:"strategy_id"`
	Route      string    `gorm:"column:route;type:varchar(32);not null;uniqueIndex:uidx_usage_strategy_route" json:"route"`
	LastStatus int       `gorm:"column:last_status;not null" json:"last_status"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;not null" json:"last_seen_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StrategyUsage) TableName() string {
	return "strategy_usage"
}
