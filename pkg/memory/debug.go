//go:build debug

package memory

const debugEnabled = true
