// Package queue provides the bounded FIFO backing the simulated device buffer pool.
package queue

// Overflow selects which item is discarded when a full queue receives a new one.
type Overflow uint8

const (
	// DropNewest rejects the incoming item when the queue is full.
	DropNewest Overflow = iota
	// DropOldest evicts the head of the queue to make room for the incoming item.
	DropOldest
)

// Bounded is a FIFO queue with a fixed capacity. It is not safe for concurrent use.
type Bounded[T any] struct {
	items    []T
	head     int
	size     int
	overflow Overflow
}

// NewBounded creates a queue holding at most capacity items. A capacity below 1 is treated as 1.
func NewBounded[T any](capacity int, overflow Overflow) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Bounded[T]{items: make([]T, capacity), overflow: overflow}
}

// Enqueue adds item to the tail of the queue.
//
// When the queue is full, the item selected by the overflow policy is returned with dropped set to true.
func (q *Bounded[T]) Enqueue(item T) (discarded T, dropped bool) {
	if q.size == len(q.items) {
		if q.overflow == DropNewest {
			return item, true
		}
		discarded, _ = q.Dequeue()
		dropped = true
	}

	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++

	return discarded, dropped
}

// Dequeue removes and returns the item at the head of the queue.
func (q *Bounded[T]) Dequeue() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Bounded[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}

	return q.items[q.head], true
}

// Drain removes every item, oldest first.
func (q *Bounded[T]) Drain() []T {
	out := make([]T, 0, q.size)
	for {
		item, ok := q.Dequeue()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// Length returns the number of items in the queue.
func (q *Bounded[T]) Length() int { return q.size }

// Capacity returns the maximum number of items the queue holds.
func (q *Bounded[T]) Capacity() int { return len(q.items) }

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *Bounded[T]) IsEmpty() bool { return q.size == 0 }
