// Package memory provides the fixed-size block allocators and the
// size-bucketed cache that the rest of memsched builds on.
//
// # Overview
//
// The package offers three allocators, leaf to root:
//   - ChunkAllocator[T]: single-goroutine bump allocator over geometrically
//     growing chunks. Slots are never returned individually; the whole arena
//     is reclaimed with Clear.
//   - LockFreeAllocator[T]: fixed-size slot allocator safe for any number of
//     goroutines. Free slots form a LIFO free-list whose head is a tagged
//     index updated with a single compare-and-swap.
//   - SizeClassCache: byte allocator that keeps one lock-free free-list per
//     exact request size, carving slot memory out of a shared ChunkAllocator.
//
// # Free-list representation
//
// Free-list links are kept in side arrays indexed by slot position rather
// than inside the freed memory, so the garbage collector never sees a
// pointer it does not know about. The head packs a 32-bit slot index with a
// 32-bit generation counter; every successful push or pop bumps the
// generation so a stale snapshot of a reused slot fails its CAS.
//
// # Ownership
//
// Chunks belong to exactly one allocator for its whole life. They are never
// partially freed; Clear drops all of them at once and is not safe to call
// concurrently with any other method on the same allocator.
//
// # Debug builds
//
// Building with -tags debug enables ownership and double-free assertions,
// size headers on SizeClassCache slots, and fills released byte memory with
// a sentinel pattern so use-after-free shows up in tests.
//
// Example:
//
//	alloc := memory.NewLockFreeAllocator[Order](memory.WithInitialSlots(1024))
//	o := alloc.Allocate()
//	defer alloc.Deallocate(o)
package memory
