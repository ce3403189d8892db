package hashmap

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// ConcurrentMap is a HashMap backed by a sharded concurrent map.
type ConcurrentMap[K comparable, V comparable] struct {
	backend cmap.ConcurrentMap[K, V]
}

// NewConcurrentMap creates a ConcurrentMap keyed by strings.
//
// The shard count is global to the backing library, so the most recent value passed wins.
func NewConcurrentMap[V comparable](shards int) *ConcurrentMap[string, V] {
	if shards > 0 {
		cmap.SHARD_COUNT = shards
	}

	return &ConcurrentMap[string, V]{
		backend: cmap.New[V](),
	}
}

func NewConcurrentMapWithCustomShardingFunction[K comparable, V comparable](shards int, sharding func(key K) uint32) *ConcurrentMap[K, V] {
	if shards > 0 {
		cmap.SHARD_COUNT = shards
	}

	return &ConcurrentMap[K, V]{
		backend: cmap.NewWithCustomShardingFunction[K, V](sharding),
	}
}

func (m *ConcurrentMap[K, V]) Delete(key K) {
	m.backend.Remove(key)
}

func (m *ConcurrentMap[K, V]) Load(key K) (V, bool) {
	return m.backend.Get(key)
}

func (m *ConcurrentMap[K, V]) LoadAndDelete(key K) (retVal V, retExists bool) {
	m.backend.RemoveCb(key, func(key K, val V, exists bool) bool {
		retVal = val
		retExists = exists
		return true
	})
	return
}

func (m *ConcurrentMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	if m.backend.SetIfAbsent(key, value) {
		return value, false
	}

	return m.Load(key)
}

// CompareAndSwap replaces the value of key with newVal if its current value equals oldVal.
// Keys that are not present are never created.
func (m *ConcurrentMap[K, V]) CompareAndSwap(key K, oldVal V, newVal V) (val V, swapped bool) {
	if _, exists := m.backend.Get(key); !exists {
		return val, false
	}

	m.backend.Upsert(key, newVal, func(exist bool, valueInMap V, newValue V) V {
		if exist && valueInMap == oldVal {
			swapped = true
			val = newValue
			return newValue
		}

		val = valueInMap
		return valueInMap
	})

	return val, swapped
}

// Range calls cb for each entry of a snapshot of the map until cb returns false.
func (m *ConcurrentMap[K, V]) Range(cb func(K, V) bool) {
	next := true
	for item := range m.backend.IterBuffered() {
		if next {
			next = cb(item.Key, item.Val)
		}
		// iterate over all items to drain the channel
	}
}

func (m *ConcurrentMap[K, V]) Store(key K, val V) {
	m.backend.Set(key, val)
}

func (m *ConcurrentMap[K, V]) Len() int {
	return m.backend.Count()
}

func (m *ConcurrentMap[K, V]) Keys() []K {
	return m.backend.Keys()
}

// Values returns a snapshot of the values currently in the map, in no particular order.
func (m *ConcurrentMap[K, V]) Values() []V {
	values := make([]V, 0, m.backend.Count())
	m.Range(func(_ K, v V) bool {
		values = append(values, v)
		return true
	})
	return values
}

// Drain removes and returns every entry currently in the map.
func (m *ConcurrentMap[K, V]) Drain() map[K]V {
	drained := make(map[K]V)
	for _, key := range m.backend.Keys() {
		if val, ok := m.LoadAndDelete(key); ok {
			drained[key] = val
		}
	}
	return drained
}
