package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

// DefaultGroup 进程级协程组，退出前可 Wait
func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

// Go 启动受保护的协程
func Go(fn func()) {
	DefaultGroup().Go(fn)
}

func Wait() {
	DefaultGroup().Wait()
}

// Running 当前仍在运行的协程数
func Running() int64 {
	return DefaultGroup().Running()
}

type WaitGroup struct {
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

// Go 启动协程，panic 只记录日志不扩散
func (s *WaitGroup) Go(fn func()) {
	s.running.Add(1)
	s.wg.Add(1)

	go func() {
		defer func() {
			s.running.Add(-1)
			s.wg.Done()
		}()
		defer Recover()

		fn()
	}()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}

func (s *WaitGroup) Running() int64 {
	return s.running.Load()
}
