package memory

import "fmt"

// Sentinel is written over released byte memory in debug builds.
const Sentinel = byte(0xDD)

// protocolViolation aborts in debug builds. Release builds treat the same
// situations as undefined behaviour and carry on.
func protocolViolation(format string, args ...any) {
	if debugEnabled {
		panic(fmt.Sprintf("memory: "+format, args...))
	}
}

func poison(b []byte) {
	if !debugEnabled {
		return
	}
	for i := range b {
		b[i] = Sentinel
	}
}

// poisonSlots fills byte chunks with the sentinel. Chunks of other element
// types may hold pointers and are left alone.
func poisonSlots[T any](chunk []T) {
	if !debugEnabled {
		return
	}
	if b, ok := any(chunk).([]byte); ok {
		poison(b)
	}
}
