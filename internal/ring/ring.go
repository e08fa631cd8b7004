// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// element when full. It is not safe for concurrent use; callers hold their
// own lock.
package ring

type Buffer[T any] struct {
	items []T
	head  int
	count int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Push(v T) {
	if b.count == len(b.items) {
		b.items[b.head] = v
		b.head = (b.head + 1) % len(b.items)
		return
	}
	b.items[(b.head+b.count)%len(b.items)] = v
	b.count++
}

func (b *Buffer[T]) Len() int {
	return b.count
}

// At returns the i-th element, oldest first.
func (b *Buffer[T]) At(i int) T {
	return b.items[(b.head+i)%len(b.items)]
}

func (b *Buffer[T]) Last() (T, bool) {
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.At(b.count - 1), true
}

// Tail copies the newest n elements in arrival order. n <= 0 or n > Len
// means all of them.
func (b *Buffer[T]) Tail(n int) []T {
	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]T, n)
	start := b.count - n
	for i := range out {
		out[i] = b.At(start + i)
	}
	return out
}

func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.count = 0
}
