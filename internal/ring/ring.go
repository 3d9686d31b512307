// Package ring provides a fixed-capacity buffer that keeps the most
// recent N items. Pushing into a full buffer evicts the oldest item.
package ring

// Buffer is a fixed-capacity FIFO ring. Not safe for concurrent use;
// owners guard it with their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest item
	size  int
}

// New creates a buffer holding at most capacity items.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest item when full. It reports the
// evicted item, if any.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = v
		b.size++
		return evicted, false
	}
	evicted = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % capacity
	return evicted, true
}

// Len returns the number of items held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Oldest returns the items oldest first.
func (b *Buffer[T]) Oldest() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Newest returns up to n items, most recent first. n <= 0 means all.
func (b *Buffer[T]) Newest(n int) []T {
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.items[(b.head+b.size-1-i)%len(b.items)]
	}
	return out
}

// Clear drops every item. Slots are zeroed so held pointers can be
// collected.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head, b.size = 0, 0
}
