package circularbuffer

import "sync"

// CircularBuffer keeps the most recent len(values) elements pushed to it.
type CircularBuffer[T any] struct {
	values   []T
	position int
	full     bool
	mu       sync.Mutex
}

func New[T any](size int) *CircularBuffer[T] {
	if size < 1 {
		size = 1
	}

	return &CircularBuffer[T]{
		values: make([]T, size),
	}
}

func (cb *CircularBuffer[T]) Push(element T) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.values[cb.position] = element
	cb.position++

	if cb.position >= len(cb.values) {
		cb.position = 0
		cb.full = true
	}
}

// Len is the number of elements held, at most the buffer size.
func (cb *CircularBuffer[T]) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.full {
		return len(cb.values)
	}
	return cb.position
}

// Slice copies the held elements, oldest first.
func (cb *CircularBuffer[T]) Slice() []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.full {
		return append([]T(nil), cb.values[:cb.position]...)
	}

	out := make([]T, 0, len(cb.values))
	out = append(out, cb.values[cb.position:]...)
	return append(out, cb.values[:cb.position]...)
}

// Each calls fn on every held element, oldest first.
func (cb *CircularBuffer[T]) Each(fn func(T)) {
	for _, v := range cb.Slice() {
		fn(v)
	}
}
