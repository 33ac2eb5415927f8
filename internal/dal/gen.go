package dal

import (
	"gorm.io/gen"
	"gorm.io/gorm"

	"github.com/utrading/utrading-signal-gateway/internal/models"
)

// GenExecute 生成 gorm-gen 查询代码
// 命令使用: go run cmd/gen/main.go
func GenExecute(outPath string, db *gorm.DB) {
	g := gen.NewGenerator(gen.Config{
		OutPath: outPath,
		Mode:    gen.WithoutContext | gen.WithDefaultQuery | gen.WithQueryInterface,
	})

	g.UseDB(db)

	g.ApplyBasic(
		models.Strategy{},
		models.RawSignal{},
		models.StoredSignal{},
		models.AccountState{},
		models.StrategyUsage{},
	)

	g.Execute()
}
