package queue

import (
	"container/heap"
	"sync"
)

// Item is a single item in the priority queue.
type Item[T any] struct {
	Value    T
	Priority int
	seq      uint64
	index    int
}

// itemHeap implements heap.Interface. Lower priority values drain first;
// items with equal priority drain in insertion order.
type itemHeap[T any] []*Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x interface{}) {
	n := len(*h)
	item := x.(*Item[T])
	item.index = n
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// PriorityQueue is a thread-safe generic priority queue with stable FIFO
// ordering inside each priority band.
type PriorityQueue[T any] struct {
	heap itemHeap[T]
	next uint64
	mu   sync.Mutex
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		heap: make(itemHeap[T], 0),
	}
	heap.Init(&pq.heap)
	return pq
}

func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.heap.Len()
}

// Enqueue adds a value with the given priority (lower drains first).
func (pq *PriorityQueue[T]) Enqueue(value T, priority int) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	item := &Item[T]{
		Value:    value,
		Priority: priority,
		seq:      pq.next,
	}
	pq.next++
	heap.Push(&pq.heap, item)
}

// Dequeue removes and returns the highest priority item.
func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.heap.Len() == 0 {
		var zero T
		return zero, false
	}

	item := heap.Pop(&pq.heap).(*Item[T])
	return item.Value, true
}

// DequeueAll drains the queue in priority order.
func (pq *PriorityQueue[T]) DequeueAll() []T {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	items := make([]T, 0, pq.heap.Len())
	for pq.heap.Len() > 0 {
		item := heap.Pop(&pq.heap).(*Item[T])
		items = append(items, item.Value)
	}
	return items
}

// Clear discards all queued items.
func (pq *PriorityQueue[T]) Clear() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.heap = pq.heap[:0]
}
