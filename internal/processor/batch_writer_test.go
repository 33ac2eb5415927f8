package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/dal"
	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/models"
)

type testItem struct {
	table string
	key   string
	value int
}

func (i testItem) TableName() string { return i.table }
func (i testItem) DedupKey() string  { return i.key }

type recordingSink struct {
	mu      sync.Mutex
	batches [][]BatchItem
	err     error
}

func (s *recordingSink) write(items []BatchItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, items)
	return s.err
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestBatchWriter_StartStop(t *testing.T) {
	w := NewBatchWriter(&BatchWriterConfig{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
		MaxQueueSize:  100,
	})
	w.Start()
	w.Stop()
	w.Stop()

	assert.ErrorIs(t, w.Add(testItem{table: "t", key: "k"}), ErrWriterStopped)
}

func TestBatchWriter_BatchSizeTrigger(t *testing.T) {
	sink := &recordingSink{}
	w := NewBatchWriter(&BatchWriterConfig{
		BatchSize:     5,
		FlushInterval: time.Hour,
		MaxQueueSize:  100,
	})
	w.RegisterSink("t", sink.write)
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Add(testItem{table: "t", key: fmt.Sprintf("k%d", i), value: i}))
	}

	assert.Eventually(t, func() bool { return sink.total() == 5 }, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_Dedup(t *testing.T) {
	sink := &recordingSink{}
	w := NewBatchWriter(&BatchWriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		MaxQueueSize:  100,
	})
	w.RegisterSink("t", sink.write)
	w.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, w.Add(testItem{table: "t", key: "same", value: i}))
	}
	w.Stop()

	require.Equal(t, 1, sink.total())
	assert.Equal(t, 9, sink.batches[0][0].(testItem).value)
}

func TestBatchWriter_IntervalFlush(t *testing.T) {
	sink := &recordingSink{}
	w := NewBatchWriter(&BatchWriterConfig{
		BatchSize:     100,
		FlushInterval: 50 * time.Millisecond,
		MaxQueueSize:  100,
	})
	w.RegisterSink("t", sink.write)
	w.Start()
	defer w.Stop()

	require.NoError(t, w.Add(testItem{table: "t", key: "k"}))
	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return w.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_FailedSinkDropsBatch(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	w := NewBatchWriter(&BatchWriterConfig{BatchSize: 100, FlushInterval: time.Hour, MaxQueueSize: 10})
	w.RegisterSink("t", sink.write)
	w.Start()

	require.NoError(t, w.Add(testItem{table: "t", key: "k"}))
	w.Stop()

	assert.Equal(t, 1, sink.total())
	assert.Equal(t, int64(0), w.Pending())
}

func TestBatchWriter_QueueFull(t *testing.T) {
	// 未启动，队列不会被消费
	w := NewBatchWriter(&BatchWriterConfig{MaxQueueSize: 2})

	require.NoError(t, w.Add(testItem{table: "t", key: "a"}))
	require.NoError(t, w.Add(testItem{table: "t", key: "b"}))
	assert.ErrorIs(t, w.Add(testItem{table: "t", key: "c"}), ErrQueueFull)
}

func TestUsageTracker_Upsert(t *testing.T) {
	db, err := dal.OpenSQLite("file::memory:")
	require.NoError(t, err)
	tables := config.DefaultTables()
	dal.AutoMigrate(db, tables)

	usage := dao.NewUsageDAO(dal.Static(db), tables.StrategyUsage)
	w := NewBatchWriter(&BatchWriterConfig{BatchSize: 100, FlushInterval: time.Hour, MaxQueueSize: 100})
	tracker := NewUsageTracker(w, usage)
	w.Start()

	tracker.Record("S1", "positions", 200)
	tracker.Record("S1", "positions", 500)
	tracker.Record("S1", "list_signals", 200)
	w.Stop()

	u, err := usage.Get(context.Background(), "S1", "positions")
	require.NoError(t, err)
	assert.Equal(t, 500, u.LastStatus)

	u, err = usage.Get(context.Background(), "S1", "list_signals")
	require.NoError(t, err)
	assert.Equal(t, 200, u.LastStatus)
}

func TestUsageItem_DedupKey(t *testing.T) {
	a := UsageItem{Table: "strategy_usage", Usage: &models.StrategyUsage{StrategyID: "S1", Route: "positions"}}
	b := UsageItem{Table: "strategy_usage", Usage: &models.StrategyUsage{StrategyID: "S1", Route: "signal_detail"}}
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())
	assert.Equal(t, "strategy_usage", a.TableName())
}

func BenchmarkBatchWriter_Add(b *testing.B) {
	var written atomic.Int64
	w := NewBatchWriter(&BatchWriterConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond, MaxQueueSize: 10000})
	w.RegisterSink("t", func(items []BatchItem) error {
		written.Add(int64(len(items)))
		return nil
	})
	w.Start()
	defer w.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.Add(testItem{table: "t", key: fmt.Sprintf("k%d", i%1000), value: i})
	}
}
