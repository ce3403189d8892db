package hashmap

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
)

// OrderedMap is a mutex-guarded map that remembers insertion order.
type OrderedMap[K comparable, V any] struct {
	backend *orderedmap.OrderedMap[K, V]
	mu      sync.RWMutex
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		backend: orderedmap.NewOrderedMap[K, V](),
	}
}

func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.backend.Get(key)
}

// Store sets the value of key. Existing keys keep their original position.
func (m *OrderedMap[K, V]) Store(key K, val V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backend.Set(key, val)
}

func (m *OrderedMap[K, V]) LoadOrStore(key K, val V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.backend.Get(key); ok {
		return existing, true
	}

	m.backend.Set(key, val)
	return val, false
}

func (m *OrderedMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backend.Delete(key)
}

func (m *OrderedMap[K, V]) LoadAndDelete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.backend.Get(key)
	if ok {
		m.backend.Delete(key)
	}
	return val, ok
}

func (m *OrderedMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.backend.Len()
}

// Range calls cb for each entry in insertion order until cb returns false.
// The map is not locked while cb runs, so cb may modify the map.
func (m *OrderedMap[K, V]) Range(cb func(K, V) bool) {
	m.mu.RLock()
	keys := m.backend.Keys()
	values := make([]V, 0, len(keys))
	for _, key := range keys {
		val, _ := m.backend.Get(key)
		values = append(values, val)
	}
	m.mu.RUnlock()

	for i, key := range keys {
		if !cb(key, values[i]) {
			return
		}
	}
}

// Values returns the values in insertion order.
func (m *OrderedMap[K, V]) Values() []V {
	values := make([]V, 0, m.Len())
	m.Range(func(_ K, v V) bool {
		values = append(values, v)
		return true
	})
	return values
}
