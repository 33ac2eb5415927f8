package dal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	proxymysql "github.com/go-sql-driver/mysql"
	"golang.org/x/net/proxy"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// ErrDSNNotConfigured 未配置连接串，属于部署错误，不重试
var ErrDSNNotConfigured = errors.New("database dsn not configured")

// Connector 提供共享的数据库连接
type Connector interface {
	DB() (*gorm.DB, error)
}

// lazyConn 首次调用时建立连接，之后始终返回同一实例
// 连接失败的结果同样被缓存
type lazyConn struct {
	once sync.Once
	open func() (*gorm.DB, error)
	db   *gorm.DB
	err  error
}

func (l *lazyConn) DB() (*gorm.DB, error) {
	l.once.Do(func() {
		l.db, l.err = l.open()
	})
	return l.db, l.err
}

// staticConn 已建立的连接，测试使用
type staticConn struct {
	db *gorm.DB
}

func (s staticConn) DB() (*gorm.DB, error) {
	return s.db, nil
}

// Static 包装一个已打开的连接
func Static(db *gorm.DB) Connector {
	return staticConn{db: db}
}

var (
	defaultConn *lazyConn
	connMu      sync.Mutex
)

// Init 记录连接参数，真正的连接在第一次 DB() 时建立
func Init(cfg config.Database) {
	connMu.Lock()
	defer connMu.Unlock()

	defaultConn = &lazyConn{
		open: func() (*gorm.DB, error) {
			return connect(cfg)
		},
	}
}

// Default 返回进程级连接
func Default() Connector {
	connMu.Lock()
	defer connMu.Unlock()

	if defaultConn == nil {
		defaultConn = &lazyConn{
			open: func() (*gorm.DB, error) {
				return nil, ErrDSNNotConfigured
			},
		}
	}
	return defaultConn
}

// DB 获取进程级连接
func DB() (*gorm.DB, error) {
	return Default().DB()
}

// registerProxyDialer 注册 SOCKS5 代理拨号器
func registerProxyDialer(proxyAddr string) error {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return fmt.Errorf("create proxy dialer failed: %w", err)
	}

	proxymysql.RegisterDialContext("dial", func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.Dial("tcp", addr)
	})

	return nil
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		logger.GormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func connect(cfg config.Database) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrDSNNotConfigured
	}

	switch cfg.Driver {
	case "sqlite":
		db, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "sqlite").Msg("database connected")
		return db, nil
	case "", "mysql":
		return connectMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectMySQL(cfg config.Database) (*gorm.DB, error) {
	if cfg.ProxyEnabled {
		if err := registerProxyDialer(cfg.ProxyAddr); err != nil {
			return nil, err
		}
		logger.Infof("mysql proxy enabled: %s", cfg.ProxyAddr)
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:      newGormLogger(),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql master failed: %w", err)
	}

	maxIdleTime := time.Hour
	if cfg.SetConnMaxIdleTime > 0 {
		maxIdleTime = time.Duration(cfg.SetConnMaxIdleTime) * time.Second
	}

	maxLifetime := 2 * time.Hour
	if cfg.SetConnMaxLifetime > 0 {
		maxLifetime = time.Duration(cfg.SetConnMaxLifetime) * time.Second
	}

	// 查询接口走从库，写入走主库
	if len(cfg.SlaveAddr) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.SlaveAddr))
		for _, addr := range cfg.SlaveAddr {
			replicas = append(replicas, mysql.Open(addr))
		}

		plugin := dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			Policy:            dbresolver.RandomPolicy{},
			TraceResolverMode: true,
		}).
			SetConnMaxIdleTime(maxIdleTime).
			SetConnMaxLifetime(maxLifetime).
			SetMaxIdleConns(cfg.MaxIdleConnections).
			SetMaxOpenConns(cfg.MaxOpenConnections)
		if err = db.Use(plugin); err != nil {
			return nil, fmt.Errorf("register dbresolver failed: %w", err)
		}
		logger.Infof("mysql %d slave(s) configured", len(cfg.SlaveAddr))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB failed: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	logger.Info().Msgf("mysql connected: max_idle=%d, max_open=%d, max_idle_time=%v, max_lifetime=%v",
		cfg.MaxIdleConnections, cfg.MaxOpenConnections, maxIdleTime, maxLifetime)

	return db, nil
}

// OpenSQLite 打开 sqlite 数据库
// 内存库只保留一个连接，否则每个连接各自是一个空库
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}

	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB failed: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Ping 检查连接可用性，健康检查使用
func Ping(ctx context.Context, c Connector) error {
	db, err := c.DB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭进程级连接，未建立连接时什么也不做
func Close() {
	connMu.Lock()
	conn := defaultConn
	connMu.Unlock()

	if conn == nil || conn.db == nil {
		return
	}

	sqlDB, err := conn.db.DB()
	if err != nil {
		logger.Error().Err(err).Msg("get sql.DB failed")
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("close database failed")
		return
	}

	logger.Info().Msg("database closed")
}
