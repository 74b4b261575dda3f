// Package lockfree provides unbounded FIFO queues for concurrent hand-off
// between goroutines.
//
// SPSCQueue serves exactly one producer and one consumer without any lock:
// the producer alone moves the tail, the consumer alone moves the division
// pointer, and consumed nodes are reclaimed by the producer on its next
// Push. MPMCQueue accepts any number of producers and consumers and uses two
// short spin locks, one per end, so producers never wait on consumers.
//
// Both queues draw their nodes from a memory.LockFreeAllocator, so a queue
// in steady state does not allocate.
//
// Ordering: SPSCQueue preserves exact push order. MPMCQueue preserves the
// order in which pushes acquire the producer lock; pushes racing from
// different goroutines land in some consistent interleaving.
package lockfree
