package queue

import "sync"

// Fifo implements a first-in first-out (FIFO) queue.
//
// Fifo is not safe for concurrent use. See ThreadsafeFifo.
type Fifo[T any] struct {
	elements []T
}

// NewFifo creates a new Fifo with the specified initial capacity and returns a pointer to it.
func NewFifo[T any](initialSize int) *Fifo[T] {
	if initialSize < 0 {
		initialSize = 1
	}

	return &Fifo[T]{
		elements: make([]T, 0, initialSize),
	}
}

// Enqueue adds the specified element to the queue.
func (q *Fifo[T]) Enqueue(elem T) {
	q.elements = append(q.elements, elem)
}

// Dequeue removes and returns the next element in the queue.
//
// If the queue is empty, then Dequeue returns the zero value of T and false.
func (q *Fifo[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.elements) == 0 {
		return zero, false
	}

	elem := q.elements[0]
	q.elements[0] = zero
	q.elements = q.elements[1:]

	return elem, true
}

// Peek returns but does not remove the next element in the queue.
//
// If the queue is empty, then Peek returns the zero value of T and false.
func (q *Fifo[T]) Peek() (T, bool) {
	if len(q.elements) == 0 {
		var zero T
		return zero, false
	}

	return q.elements[0], true
}

// Len returns the number of elements in the queue.
func (q *Fifo[T]) Len() int {
	return len(q.elements)
}

// ThreadsafeFifo is a Fifo guarded by a mutex.
type ThreadsafeFifo[T any] struct {
	fifo *Fifo[T]
	mu   sync.Mutex
}

func NewThreadsafeFifo[T any](initialSize int) *ThreadsafeFifo[T] {
	return &ThreadsafeFifo[T]{
		fifo: NewFifo[T](initialSize),
	}
}

// Enqueue adds the specified element to the queue and returns the new length of the queue.
func (q *ThreadsafeFifo[T]) Enqueue(elem T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.fifo.Enqueue(elem)
	return q.fifo.Len()
}

func (q *ThreadsafeFifo[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.fifo.Dequeue()
}

func (q *ThreadsafeFifo[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.fifo.Peek()
}

func (q *ThreadsafeFifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.fifo.Len()
}

// Clear removes every element from the queue and returns how many were removed.
func (q *ThreadsafeFifo[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.fifo.Len()
	q.fifo = NewFifo[T](1)
	return n
}
