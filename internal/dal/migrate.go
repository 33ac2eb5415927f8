package dal

import (
	"gorm.io/gorm"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/models"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// tableModels 配置表名与模型的对应关系
func tableModels(tables config.Tables) map[string]any {
	m := map[string]any{
		tables.Strategies:    &models.Strategy{},
		tables.RawSignals:    &models.RawSignal{},
		tables.SignalStore:   &models.StoredSignal{},
		tables.AccountState:  &models.AccountState{},
		tables.StrategyUsage: &models.StrategyUsage{},
	}
	if tables.RawSignalsStaging != "" {
		m[tables.RawSignalsStaging] = &models.RawSignal{}
	}
	delete(m, "")
	return m
}

// AutoMigrate 按配置的表名迁移表结构
// 单表失败只记录警告，不中断启动
func AutoMigrate(db *gorm.DB, tables config.Tables) {
	for name, model := range tableModels(tables) {
		if err := db.Table(name).AutoMigrate(model); err != nil {
			logger.Warn().Err(err).Str("table", name).Msg("auto migrate failed, continuing anyway")
		} else {
			logger.Info().Str("table", name).Msg("auto migrate success")
		}
	}
}
