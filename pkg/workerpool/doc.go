// Package workerpool runs tasks on a fixed set of worker goroutines fed by
// an MPMC queue.
//
// Workers sleep on a counting semaphore. AddTask pushes one queue entry per
// requested instance and signals the semaphore once per entry; a woken
// worker drains the queue before sleeping again. Wait lets the calling
// goroutine drain the queue too, then spins until no task is in flight.
//
// Shutdown negates the run counter, wakes every worker, and waits for the
// counter to climb back to zero as workers exit. Tasks are never retried,
// cancelled or timed out.
//
// Example:
//
//	p := workerpool.New(workerpool.Config{Name: "ingest", Workers: 4}, logger)
//	defer p.Close()
//
//	var n atomic.Int64
//	p.AddTask(workerpool.TaskFunc(func() { n.Add(1) }), 1000)
//	p.Wait()
package workerpool
