package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounded(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewBounded[int](0, DropNewest)

		assert.True(q.IsEmpty())
		assert.Equal(1, q.Capacity())
		_, ok := q.Dequeue()
		assert.False(ok)
		_, ok = q.Peek()
		assert.False(ok)
	})

	t.Run("FIFO order with wrap-around", func(t *testing.T) {
		q := NewBounded[int](3, DropNewest)
		for i := 1; i <= 3; i++ {
			_, dropped := q.Enqueue(i)
			assert.False(dropped)
		}

		v, _ := q.Dequeue()
		assert.Equal(1, v)
		q.Enqueue(4)

		head, _ := q.Peek()
		assert.Equal(2, head)
		assert.Equal([]int{2, 3, 4}, q.Drain())
		assert.True(q.IsEmpty())
	})

	t.Run("DropNewest", func(t *testing.T) {
		q := NewBounded[string](2, DropNewest)
		q.Enqueue("a")
		q.Enqueue("b")

		discarded, dropped := q.Enqueue("c")
		assert.True(dropped)
		assert.Equal("c", discarded)
		assert.Equal([]string{"a", "b"}, q.Drain())
	})

	t.Run("DropOldest", func(t *testing.T) {
		q := NewBounded[string](1, DropOldest)
		q.Enqueue("a")

		discarded, dropped := q.Enqueue("b")
		assert.True(dropped)
		assert.Equal("a", discarded)
		assert.Equal(1, q.Length())

		v, _ := q.Dequeue()
		assert.Equal("b", v)
	})
}
