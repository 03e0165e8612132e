package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low", 10)
	pq.Enqueue("high", 1)
	pq.Enqueue("mid", 5)

	v, ok := pq.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "high", v)

	v, _ = pq.Dequeue()
	assert.Equal(t, "mid", v)

	v, _ = pq.Dequeue()
	assert.Equal(t, "low", v)

	_, ok = pq.Dequeue()
	assert.False(t, ok)
}

func TestFIFOWithinPriority(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 100; i++ {
		pq.Enqueue(i, 1)
	}

	drained := pq.DequeueAll()
	require.Len(t, drained, 100)
	for i, v := range drained {
		assert.Equal(t, i, v)
	}
}

func TestClear(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("a", 1)
	pq.Enqueue("b", 2)
	pq.Clear()
	assert.Equal(t, 0, pq.Len())
	_, ok := pq.Dequeue()
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	pq := NewPriorityQueue[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				pq.Enqueue(base+i, i%3)
			}
		}(g * 100)
	}
	wg.Wait()

	assert.Equal(t, 400, pq.Len())
}
