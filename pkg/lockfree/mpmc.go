package lockfree

import (
	"sync/atomic"

	"github.com/ajitpratap0/memsched/pkg/memory"
)

type mpmcNode[T any] struct {
	item T
	next atomic.Pointer[mpmcNode[T]]
	heap bool
}

// MPMCQueue is an unbounded FIFO queue for any number of producers and
// consumers. Producers serialize on one spin lock and consumers on
// another, so the two ends never contend with each other.
type MPMCQueue[T any] struct {
	// Consumer side: first is the sentinel, the head item follows it.
	consumer spinLock
	first    *mpmcNode[T]

	// Producer side
	producer spinLock
	last     *mpmcNode[T]

	length atomic.Int64
	nodes  *memory.LockFreeAllocator[mpmcNode[T]]
}

// NewMPMCQueue creates an empty queue. The options configure the node
// allocator.
func NewMPMCQueue[T any](opts ...memory.Option) *MPMCQueue[T] {
	q := &MPMCQueue[T]{nodes: memory.NewLockFreeAllocator[mpmcNode[T]](opts...)}
	n := q.newNode()
	q.first = n
	q.last = n
	return q
}

func (q *MPMCQueue[T]) newNode() *mpmcNode[T] {
	if n := q.nodes.Allocate(); n != nil {
		return n
	}
	return &mpmcNode[T]{heap: true}
}

func (q *MPMCQueue[T]) freeNode(n *mpmcNode[T]) {
	if !n.heap {
		q.nodes.Deallocate(n)
	}
}

// Push appends item at the tail. It never fails.
func (q *MPMCQueue[T]) Push(item T) {
	n := q.newNode()
	n.item = item

	q.producer.Lock()
	q.last.next.Store(n)
	q.last = n
	q.producer.Unlock()

	q.length.Add(1)
}

// Pop removes the head item, returning false when the queue is empty. The
// old sentinel is released while the consumer lock is held.
func (q *MPMCQueue[T]) Pop() (T, bool) {
	var zero T

	q.consumer.Lock()
	first := q.first
	next := first.next.Load()
	if next == nil {
		q.consumer.Unlock()
		return zero, false
	}
	item := next.item
	next.item = zero
	q.first = next
	q.freeNode(first)
	q.consumer.Unlock()

	q.length.Add(-1)
	return item, true
}

// Peek returns the head item without removing it.
func (q *MPMCQueue[T]) Peek() (T, bool) {
	q.consumer.Lock()
	defer q.consumer.Unlock()
	next := q.first.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	return next.item, true
}

// Empty reports whether the queue held no items at the moment of the call.
func (q *MPMCQueue[T]) Empty() bool {
	q.consumer.Lock()
	defer q.consumer.Unlock()
	return q.first.next.Load() == nil
}

// Len returns the number of queued items. The counter is updated outside
// the locks, so it is only a diagnostic.
func (q *MPMCQueue[T]) Len() int {
	if n := q.length.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// NodeStats returns the node allocator's statistics.
func (q *MPMCQueue[T]) NodeStats() memory.AllocatorStats {
	return q.nodes.Stats()
}
