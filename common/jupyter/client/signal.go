package client

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/scusemua/notebook-kernel-client/common/utils/hashmap"
)

// Signal is a typed broadcast to any number of subscribers.
//
// Subscribers are invoked synchronously by Emit, in subscription order. A panicking subscriber is
// recovered and logged; the remaining subscribers are still invoked.
type Signal[T any] struct {
	log logger.Logger

	name        string
	subscribers *hashmap.OrderedMap[uint64, func(T)]

	mu     sync.Mutex
	nextId uint64
	closed bool
}

func NewSignal[T any](name string) *Signal[T] {
	s := &Signal[T]{
		name:        name,
		subscribers: hashmap.NewOrderedMap[uint64, func(T)](),
	}
	config.InitLogger(&s.log, fmt.Sprintf("Signal %s ", name))

	return s
}

func (s *Signal[T]) Name() string {
	return s.name
}

// Subscribe registers fn and returns a function that removes it again.
// Subscribing to a closed Signal returns a no-op unsubscribe function.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	id := s.nextId
	s.nextId++
	s.subscribers.Store(id, fn)

	return func() {
		s.subscribers.Delete(id)
	}
}

// Emit delivers value to every current subscriber. Emit on a closed Signal does nothing.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}

	s.subscribers.Range(func(_ uint64, fn func(T)) bool {
		s.invoke(fn, value)
		return true
	})
}

func (s *Signal[T]) invoke(fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Subscriber panicked: %v\n%s", r, string(debug.Stack()))
		}
	}()

	fn(value)
}

// Close removes every subscriber. Later calls to Emit and Subscribe have no effect.
func (s *Signal[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.subscribers.Range(func(id uint64, _ func(T)) bool {
		s.subscribers.Delete(id)
		return true
	})
}

func (s *Signal[T]) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Signal[T]) NumSubscribers() int {
	return s.subscribers.Len()
}
