package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map 带长度计数的泛型 sync.Map
// 批量写入器用它按去重键暂存待写数据
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len 当前元素个数
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store 写入或覆盖，覆盖时长度不变
func (m *Map[K, V]) Store(key K, value V) {
	if _, loaded := m.data.Swap(key, value); !loaded {
		m.length.Add(1)
	}
}

// LoadAndDelete 删除并返回旧值
func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	value, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	m.length.Add(-1)
	return value.(V), true
}

func (m *Map[K, V]) Delete(key K) {
	m.LoadAndDelete(key)
}

// CompareAndDelete 值未被覆盖时才删除，V 必须可比较
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	if m.data.CompareAndDelete(key, old) {
		m.length.Add(-1)
		return true
	}
	return false
}

// Range 遍历，不保证一致性快照
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}
