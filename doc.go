// Package memsched is a toolkit of concurrent memory-management and
// task-scheduling primitives for Go programs with hot allocation paths.
//
// # Components
//
//   - memory.ChunkAllocator: a single-goroutine bump allocator over
//     chunks that grow along the Fibonacci sequence; reclaimed as a whole.
//   - memory.LockFreeAllocator: fixed-size slots handed out to any number
//     of goroutines from a CAS-managed LIFO free-list with a generation tag.
//   - memory.SizeClassCache: one free-list per exact byte size, backed by a
//     shared arena; memory.ArrowAllocator plugs it into Apache Arrow.
//   - lockfree.SPSCQueue and lockfree.MPMCQueue: unbounded FIFO queues whose
//     nodes come from a LockFreeAllocator.
//   - workerpool.Pool: a fixed set of workers fed by an MPMC queue and a
//     counting semaphore, with a Wait that helps drain the queue.
//
// # Quick Start
//
//	alloc := memory.NewLockFreeAllocator[Order](memory.WithInitialSlots(1024))
//	o := alloc.Allocate()
//	defer alloc.Deallocate(o)
//
//	pool := workerpool.New(workerpool.Config{Name: "ingest", Workers: 8}, logger)
//	defer pool.Close()
//	pool.Submit(func() { process(o) })
//	pool.Wait()
//
// # Debug builds
//
// Building with -tags debug poisons freed memory with a sentinel byte and
// turns contract violations (double frees, foreign pointers, mismatched
// cache sizes) into panics. Release builds skip those checks.
//
// The memsched command in cmd/memsched runs stress scenarios against every
// component, serves their statistics to Prometheus and manages the YAML
// configuration.
package memsched
