package main

import (
	"flag"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// 根据模型生成查询代码
func main() {
	var configFile, outPath string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.StringVar(&outPath, "out", "internal/dal/query", "output path")
	flag.Parse()

	if err := config.Load(configFile); err != nil {
		panic(err)
	}

	dal.Init(config.Get().Database)
	db, err := dal.DB()
	if err != nil {
		panic(err)
	}

	dal.GenExecute(outPath, db)
	logger.Infof("query code generated: %s", outPath)
}
