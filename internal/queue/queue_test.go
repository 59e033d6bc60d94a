package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Seq   uint64
	Found bool
}

func TestQueue_PushPop(t *testing.T) {
	q := New[sample]()
	assert.True(t, q.Empty())

	assert.Equal(t, sample{}, q.Pop(), "empty pop returns zero value")

	q.Push(sample{Seq: 1}, sample{Seq: 2})
	q.Push(sample{Seq: 3})
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, uint64(1), q.Pop().Seq)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Seq: 1}, sample{Seq: 2})

	items := q.GetAndEmpty()
	assert.Len(t, items, 2)
	assert.True(t, q.Empty())

	// the returned slice is not shared with later pushes
	q.Push(sample{Seq: 9})
	assert.Equal(t, uint64(1), items[0].Seq)
}

func TestQueue_Clear(t *testing.T) {
	q := New[sample]()
	q.Push(sample{}, sample{})
	q.Clear()
	assert.True(t, q.Empty())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[sample]()
	q.Push(sample{Seq: 1}, sample{Seq: 2})
	batch := q.GetAndEmpty()
	q.Push(sample{Seq: 3})

	q.Requeue(batch...)
	q.Requeue()

	got := q.GetAndEmpty()
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[sample](2)
	q.Push(sample{Seq: 1}, sample{Seq: 2}, sample{Seq: 3})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, uint64(2), q.Pop().Seq)

	q.Requeue(sample{Seq: 0}, sample{Seq: 1})
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, uint64(1), q.Pop().Seq)
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[sample]()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Push(sample{Seq: uint64(i*100 + j)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
	assert.Zero(t, q.Dropped())
}
