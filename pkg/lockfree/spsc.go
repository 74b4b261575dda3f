package lockfree

import (
	"sync/atomic"

	"github.com/ajitpratap0/memsched/pkg/memory"
)

type spscNode[T any] struct {
	item T
	next atomic.Pointer[spscNode[T]]
	heap bool // not from the node allocator
}

// SPSCQueue is an unbounded lock-free FIFO queue for exactly one producer
// goroutine and one consumer goroutine. Push must only be called by the
// producer; Pop and Peek only by the consumer.
type SPSCQueue[T any] struct {
	// Producer side
	first *spscNode[T] // oldest node not yet reclaimed
	last  atomic.Pointer[spscNode[T]]
	_pad1 [7]uint64 //nolint:unused

	// Consumer side
	div   atomic.Pointer[spscNode[T]] // sentinel; the next item follows it
	_pad2 [7]uint64                   //nolint:unused

	length atomic.Int64
	nodes  *memory.LockFreeAllocator[spscNode[T]]
}

// NewSPSCQueue creates an empty queue. The options configure the node
// allocator.
func NewSPSCQueue[T any](opts ...memory.Option) *SPSCQueue[T] {
	q := &SPSCQueue[T]{nodes: memory.NewLockFreeAllocator[spscNode[T]](opts...)}
	n := q.newNode()
	q.first = n
	q.div.Store(n)
	q.last.Store(n)
	return q
}

func (q *SPSCQueue[T]) newNode() *spscNode[T] {
	if n := q.nodes.Allocate(); n != nil {
		return n
	}
	return &spscNode[T]{heap: true}
}

func (q *SPSCQueue[T]) freeNode(n *spscNode[T]) {
	if !n.heap {
		q.nodes.Deallocate(n)
	}
}

// Push appends item at the tail. It never fails. Nodes the consumer has
// moved past are reclaimed before returning.
func (q *SPSCQueue[T]) Push(item T) {
	n := q.newNode()
	n.item = item

	last := q.last.Load()
	last.next.Store(n) // publish to the consumer
	q.last.Store(n)
	q.length.Add(1)

	// Reclaim everything before the consumer's sentinel.
	for div := q.div.Load(); q.first != div; {
		old := q.first
		q.first = old.next.Load()
		q.freeNode(old)
	}
}

// Pop removes the head item. It returns false when the queue is empty and
// never blocks.
func (q *SPSCQueue[T]) Pop() (T, bool) {
	var zero T
	div := q.div.Load()
	if div == q.last.Load() {
		return zero, false
	}
	next := div.next.Load()
	item := next.item
	next.item = zero // next becomes the sentinel; drop the reference
	q.div.Store(next)
	q.length.Add(-1)
	return item, true
}

// Peek returns the head item without removing it.
func (q *SPSCQueue[T]) Peek() (T, bool) {
	div := q.div.Load()
	if div == q.last.Load() {
		var zero T
		return zero, false
	}
	return div.next.Load().item, true
}

// Empty reports whether the queue held no items at the moment of the call.
func (q *SPSCQueue[T]) Empty() bool {
	return q.div.Load() == q.last.Load()
}

// Len returns the number of queued items. It is approximate while the
// queue is in use and intended for diagnostics.
func (q *SPSCQueue[T]) Len() int {
	if n := q.length.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// NodeStats returns the node allocator's statistics.
func (q *SPSCQueue[T]) NodeStats() memory.AllocatorStats {
	return q.nodes.Stats()
}
