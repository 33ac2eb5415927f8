package processor

import (
	"errors"
	"sync"
	"time"

	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/pkg/concurrent"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// BatchItem 批量写入项接口，实现类型必须可比较
type BatchItem interface {
	TableName() string
	DedupKey() string // 返回去重键
}

// SinkFunc 将同一张表的一批数据写入存储
type SinkFunc func(items []BatchItem) error

// BatchWriterConfig 批量写入配置
type BatchWriterConfig struct {
	BatchSize     int           // 批量大小（默认 100）
	FlushInterval time.Duration // 刷新间隔（默认 2s）
	MaxQueueSize  int           // 最大队列大小（默认 10000）
}

// BatchWriter 批量写入器
// 同一去重键只保留最新一条，按表分组批量写入
type BatchWriter struct {
	config    *BatchWriterConfig
	queue     chan BatchItem
	buffers   concurrent.Map[string, BatchItem]
	sinks     map[string]SinkFunc
	flushMu   sync.Mutex
	flushTick *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewBatchWriter 创建批量写入器
func NewBatchWriter(config *BatchWriterConfig) *BatchWriter {
	if config == nil {
		config = &BatchWriterConfig{}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}

	return &BatchWriter{
		config: config,
		queue:  make(chan BatchItem, config.MaxQueueSize),
		sinks:  make(map[string]SinkFunc),
		done:   make(chan struct{}),
	}
}

// RegisterSink 注册表的写入函数，需在 Start 之前调用
func (w *BatchWriter) RegisterSink(table string, sink SinkFunc) {
	w.sinks[table] = sink
}

// Start 启动批量写入器
func (w *BatchWriter) Start() {
	w.flushTick = time.NewTicker(w.config.FlushInterval)

	w.wg.Add(2)
	go w.receiveLoop()
	go w.flushLoop()
}

func (w *BatchWriter) receiveLoop() {
	defer w.wg.Done()
	for {
		select {
		case item := <-w.queue:
			w.buffers.Store(item.DedupKey(), item)

			if w.buffers.Len() >= int64(w.config.BatchSize) {
				w.flushAll()
			}
		case <-w.done:
			// 处理队列中剩余的数据
			for len(w.queue) > 0 {
				item := <-w.queue
				w.buffers.Store(item.DedupKey(), item)
			}
			return
		}
	}
}

func (w *BatchWriter) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTick.C:
			w.flushAll()
		case <-w.done:
			return
		}
	}
}

// flushAll 刷新缓冲区内所有表
func (w *BatchWriter) flushAll() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	grouped := make(map[string][]BatchItem)
	keys := make(map[string][]string)

	w.buffers.Range(func(key string, item BatchItem) bool {
		table := item.TableName()
		grouped[table] = append(grouped[table], item)
		keys[table] = append(keys[table], key)
		return true
	})

	for table, items := range grouped {
		sink, ok := w.sinks[table]
		if !ok {
			logger.Warn().Str("table", table).Int("count", len(items)).Msg("unsupported table for batch write, dropping")
		} else {
			start := time.Now()
			if err := sink(items); err != nil {
				// 写入失败不重试，等待下一次访问产生新记录
				logger.Error().Err(err).Str("table", table).Int("count", len(items)).Msg("batch upsert failed")
			} else {
				monitor.ObserveBatchWriteSize(len(items))
				monitor.ObserveBatchWriteDuration(time.Since(start).Seconds())
				logger.Debug().Str("table", table).Int("count", len(items)).Msg("batch upsert success")
			}
		}

		// 只删除未被新数据覆盖的项
		for i, key := range keys[table] {
			w.buffers.CompareAndDelete(key, items[i])
		}
	}
}

// Add 添加写入项，队列满时立即返回 ErrQueueFull
func (w *BatchWriter) Add(item BatchItem) error {
	select {
	case <-w.done:
		return ErrWriterStopped
	default:
	}

	select {
	case w.queue <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending 缓冲区中待写入的条数
func (w *BatchWriter) Pending() int64 {
	return w.buffers.Len() + int64(len(w.queue))
}

// Stop 停止写入器并写完剩余数据
func (w *BatchWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()

		w.flushAll()

		if w.flushTick != nil {
			w.flushTick.Stop()
		}
	})
}

// GracefulShutdown 优雅关闭，带超时控制
func (w *BatchWriter) GracefulShutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Msg("batch writer shutdown timeout")
		return ErrShutdownTimeout
	}
}

var (
	// ErrQueueFull 队列满错误
	ErrQueueFull = errors.New("batch queue full")
	// ErrWriterStopped 写入器已停止
	ErrWriterStopped = errors.New("batch writer stopped")
	// ErrShutdownTimeout 关闭超时错误
	ErrShutdownTimeout = errors.New("shutdown timeout")
)
