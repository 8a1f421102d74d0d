package queue

import (
	"container/heap"
	"sync"
)

// Item is a single entry in the queue
type Item[T any] struct {
	Value    T
	Priority int
	seq      uint64
}

type itemHeap[T any] []*Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

// Less orders by priority (lower first) and keeps insertion order among equal priorities.
func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) { *h = append(*h, x.(*Item[T])) }

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// PriorityQueue is a thread-safe, stable, generic min-priority queue.
type PriorityQueue[T any] struct {
	heap itemHeap[T]
	next uint64
	mu   sync.Mutex
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.heap.Len()
}

func (pq *PriorityQueue[T]) Enqueue(value T, priority int) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	heap.Push(&pq.heap, &Item[T]{Value: value, Priority: priority, seq: pq.next})
	pq.next++
}

// Dequeue removes the lowest priority value. The bool is false on an empty queue.
func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.heap.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&pq.heap).(*Item[T]).Value, true
}

// Drain empties the queue and returns its values in priority order.
func (pq *PriorityQueue[T]) Drain() []T {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	out := make([]T, 0, pq.heap.Len())
	for pq.heap.Len() > 0 {
		out = append(out, heap.Pop(&pq.heap).(*Item[T]).Value)
	}
	return out
}
