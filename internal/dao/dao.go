package dao

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/dal"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

var (
	_strategy     *StrategyDAO
	_rawSignal    *RawSignalDAO
	_signalStore  *SignalStoreDAO
	_accountState *AccountStateDAO
	_usage        *UsageDAO
	initOnce      sync.Once
)

// InitDAO 初始化所有 DAO（应用启动时调用）
func InitDAO(conn dal.Connector, tables config.Tables) {
	initOnce.Do(func() {
		_strategy = NewStrategyDAO(conn, tables.Strategies)
		_rawSignal = NewRawSignalDAO(conn, tables.RawSignals, tables.RawSignalsStaging)
		_signalStore = NewSignalStoreDAO(conn, tables.SignalStore)
		_accountState = NewAccountStateDAO(conn, tables.AccountState)
		_usage = NewUsageDAO(conn, tables.StrategyUsage)
	})
}

func Strategy() *StrategyDAO         { return _strategy }
func RawSignal() *RawSignalDAO       { return _rawSignal }
func SignalStore() *SignalStoreDAO   { return _signalStore }
func AccountState() *AccountStateDAO { return _accountState }
func Usage() *UsageDAO               { return _usage }

// table 取连接并指定表名
func table(ctx context.Context, conn dal.Connector, name string) (*gorm.DB, error) {
	db, err := conn.DB()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx).Table(name), nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
