package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

const (
	// EnvDSN 存储连接串（优先于配置文件）
	EnvDSN = "SIGNAL_GATEWAY_DSN"
	// EnvPassphrases 逗号分隔的 webhook 口令列表
	EnvPassphrases = "WEBHOOK_PASSPHRASES"
	// EnvPassphrase 单个口令（兼容旧部署）
	EnvPassphrase = "WEBHOOK_PASSPHRASE"

	// DefaultPassphrase 未配置时的内置口令，不安全，仅用于本地调试
	DefaultPassphrase = "yahoo123"
)

type Gateway struct {
	ServiceName      string        `toml:"service_name"`
	ListenAddr       string        `toml:"listen_addr"`
	HealthServerAddr string        `toml:"health_server_addr"`
	WebhookPath      string        `toml:"webhook_path"`
	APIPrefix        string        `toml:"api_prefix"`
	Passphrases      []string      `toml:"passphrases"`
	APIKeyCacheTTL   time.Duration `toml:"api_key_cache_ttl"`
	MaxBodyBytes     int64         `toml:"max_body_bytes"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
}

type Tables struct {
	Strategies        string `toml:"strategies"`
	RawSignals        string `toml:"raw_signals"`
	RawSignalsStaging string `toml:"raw_signals_staging"`
	SignalStore       string `toml:"signal_store"`
	AccountState      string `toml:"account_state"`
	StrategyUsage     string `toml:"strategy_usage"`
}

type Database struct {
	Driver             string   `toml:"driver"` // mysql / sqlite
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
	AutoMigrate        bool     `toml:"auto_migrate"`
	Tables             Tables   `toml:"tables"`
}

type NATS struct {
	Endpoint string `toml:"endpoint"` // 为空时不转发
	Subject  string `toml:"subject"`
}

type Forwarder struct {
	PoolSize int `toml:"pool_size"`
}

type Usage struct {
	BatchSize     int           `toml:"batch_size"`
	FlushInterval time.Duration `toml:"flush_interval"`
	MaxQueueSize  int           `toml:"max_queue_size"`
}

// Retention 数据保留策略，各项为 0 时不清理
type Retention struct {
	Interval          time.Duration `toml:"interval"`
	StagingRawMaxAge  time.Duration `toml:"staging_raw_max_age"`
	StagingRawMaxRows int64         `toml:"staging_raw_max_rows"`
	UsageMaxAge       time.Duration `toml:"usage_max_age"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	Gateway   Gateway   `toml:"gateway"`
	Database  Database  `toml:"database"`
	NATS      NATS      `toml:"nats"`
	Forwarder Forwarder `toml:"forwarder"`
	Usage     Usage     `toml:"usage"`
	Retention Retention `toml:"retention"`
	Logger    Logger    `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Gateway: Gateway{
			ServiceName:      "Mathematricks Fun(d) Signal Receiver",
			ListenAddr:       "0.0.0.0:8080",
			HealthServerAddr: "0.0.0.0:16801",
			WebhookPath:      "/api/signals",
			APIPrefix:        "/api/v1",
			APIKeyCacheTTL:   30 * time.Second,
			MaxBodyBytes:     1 << 20,
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Database: Database{
			Driver:             "mysql",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
			AutoMigrate:        true,
			Tables:             DefaultTables(),
		},
		NATS: NATS{
			Subject: "signal_gateway.signal_received",
		},
		Forwarder: Forwarder{
			PoolSize: 16,
		},
		Usage: Usage{
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
			MaxQueueSize:  10000,
		},
		Retention: Retention{
			Interval:          time.Hour,
			StagingRawMaxAge:  7 * 24 * time.Hour,
			StagingRawMaxRows: 500000,
			UsageMaxAge:       90 * 24 * time.Hour,
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
	}
}

// DefaultTables 默认表名，与原文档库的集合名保持一致
func DefaultTables() Tables {
	return Tables{
		Strategies:    "strategies",
		RawSignals:    "trading_signals_raw",
		SignalStore:   "signal_store",
		AccountState:  "account_state",
		StrategyUsage: "strategy_usage",
	}
}

func Load(path string) error {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}
	applyEnv(c)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

// Set 直接设置配置（无配置文件时使用）
func Set(c *Config) {
	applyEnv(c)

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
}

// applyEnv 环境变量覆盖
func applyEnv(c *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDSN)); dsn != "" {
		c.Database.DSN = dsn
	}
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Passphrases 返回当前可接受的 webhook 口令
// 优先级: WEBHOOK_PASSPHRASES > WEBHOOK_PASSPHRASE > 配置文件 > 内置默认值
func Passphrases() []string {
	for _, key := range []string{EnvPassphrases, EnvPassphrase} {
		if raw := os.Getenv(key); raw != "" {
			if list := SplitList(raw); len(list) > 0 {
				return list
			}
		}
	}

	if c := Get(); c != nil && len(c.Gateway.Passphrases) > 0 {
		return c.Gateway.Passphrases
	}

	return []string{DefaultPassphrase}
}

// SplitList 按逗号切分并去除空白项
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		close(stopChan)
		stopChan = nil
	}
}

// reloadIfNeeded 仅在文件修改时重载
// 只有口令列表会热更新，其余字段仅在启动时读取
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
