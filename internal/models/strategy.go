package models

import "time"

// Strategy 策略发送方，每个策略持有一个 API Key
type Strategy struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	StrategyID string `gorm:"column:strategy_id;type:varchar(128);not null;uniqueIndex:uidx_strategy_id;comment:策略标识" json:"strategy_id"`
	APIKey     string `gorm:"column:api_key;type:varchar(128);not null;uniqueIndex:uidx_api_key;comment:访问密钥" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 默认表名，实际表名以配置为准
func (Strategy) TableName() string {
	return "strategies"
}
