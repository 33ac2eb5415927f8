package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/auth"
	"github.com/utrading/utrading-signal-gateway/internal/cache"
	"github.com/utrading/utrading-signal-gateway/internal/cleaner"
	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/internal/nats"
	"github.com/utrading/utrading-signal-gateway/internal/processor"
	"github.com/utrading/utrading-signal-gateway/internal/query"
	"github.com/utrading/utrading-signal-gateway/internal/server"
	"github.com/utrading/utrading-signal-gateway/internal/signal"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
	"github.com/utrading/utrading-signal-gateway/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	_ = godotenv.Load()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}

	logger.Info().Msg("signal_gateway service starting...")

	// 初始化指标
	monitor.InitMetrics()

	// 初始化数据库，连接在首次使用时建立
	dal.Init(cfg.Database)
	if cfg.Database.AutoMigrate {
		db, err := dal.DB()
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database failed")
		}
		dal.AutoMigrate(db, cfg.Database.Tables)
	}

	// 初始化 DAO
	dao.InitDAO(dal.Default(), cfg.Database.Tables)

	// 创建数据清理器
	dataCleaner := cleaner.NewCleaner(dao.RawSignal(), dao.Usage(), cfg.Retention)
	dataCleaner.Start()

	// 认证
	keyCache := cache.NewAPIKeyCache(cfg.Gateway.APIKeyCacheTTL)
	authenticator := auth.NewAuthenticator(dao.Strategy(), keyCache)

	// NATS 转发，未配置或连接失败时不转发
	var (
		publisher    *nats.Publisher
		publisherRef monitor.PublisherRef
		forwarder    *processor.SignalForwarder
		signalFwd    signal.Forwarder
	)
	if cfg.NATS.Endpoint != "" {
		p, err := nats.NewPublisher(cfg.NATS.Endpoint, cfg.NATS.Subject)
		if err != nil {
			logger.Error().Err(err).Msg("init nats publisher failed, forwarding disabled")
		} else {
			publisher, publisherRef = p, p

			forwarder, err = processor.NewSignalForwarder(publisher, cfg.Forwarder.PoolSize)
			if err != nil {
				logger.Fatal().Err(err).Msg("init signal forwarder failed")
			}
			signalFwd = forwarder
		}
	}

	// 创建批量写入器
	batchWriter := processor.NewBatchWriter(&processor.BatchWriterConfig{
		BatchSize:     cfg.Usage.BatchSize,
		FlushInterval: cfg.Usage.FlushInterval,
		MaxQueueSize:  cfg.Usage.MaxQueueSize,
	})
	batchWriter.Start()
	usageTracker := processor.NewUsageTracker(batchWriter, dao.Usage())

	// 业务处理
	ingest := signal.NewHandler(dao.RawSignal(), signalFwd, signal.Config{
		ServiceName:  cfg.Gateway.ServiceName,
		MaxBodyBytes: cfg.Gateway.MaxBodyBytes,
		Passphrases:  config.Passphrases,
	})
	queries := query.NewHandler(authenticator, dao.SignalStore(), dao.AccountState(), usageTracker)

	gateway := server.NewServer(cfg.Gateway, server.Routes{
		Webhook:      ingest.Route(),
		ListSignals:  queries.ListSignalsRoute(),
		SignalDetail: queries.SignalDetailRoute(),
		Positions:    queries.PositionsRoute(),
	})
	if err := gateway.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start gateway server failed")
	}

	// 初始化健康检查服务器
	healthServer := monitor.NewHealthServer(
		cfg.Gateway.HealthServerAddr,
		monitor.PingFunc(func(ctx context.Context) error {
			return dal.Ping(ctx, dal.Default())
		}),
		publisherRef,
	)
	healthServer.RegisterCache("api_key", keyCache)
	if err := healthServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("listen_addr", cfg.Gateway.ListenAddr).
		Str("health_addr", cfg.Gateway.HealthServerAddr).
		Bool("forwarding", forwarder != nil).
		Msg("signal_gateway service started successfully")

	stopped := make(chan struct{})

	// 优雅关闭
	sigproc.GracefulShutdown(30*time.Second, func(sig os.Signal) {
		defer close(stopped)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// 停止数据清理器
		dataCleaner.Stop()

		// 停止接收新请求
		if err := gateway.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("stop gateway server failed")
		}

		// 关闭健康检查服务器
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("stop health server failed")
		}

		// 等待转发任务完成
		if forwarder != nil {
			if err := forwarder.Close(5 * time.Second); err != nil {
				logger.Warn().Err(err).Msg("signal forwarder close timeout")
			}
		}
		if publisher != nil {
			_ = publisher.Close()
		}

		// 关闭配置重载
		config.Stop()

		// 刷新访问记录
		if err := batchWriter.GracefulShutdown(5 * time.Second); err != nil {
			logger.Warn().Err(err).Msg("batch writer shutdown timeout")
		}

		// 关闭数据库
		dal.Close()

		logger.Info().Msg("signal_gateway service stopped")
	})

	<-stopped
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
