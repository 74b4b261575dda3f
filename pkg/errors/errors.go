// Package errors provides the typed errors memsched components return.
// Each error carries a category, optional details for structured logging
// and the call stack of the place it was first raised.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType is the category of an Error.
type ErrorType string

const (
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	// ErrorTypeAllocation marks allocators that could not grow.
	ErrorTypeAllocation ErrorType = "allocation"
	// ErrorTypeProtocol marks broken allocator or queue contracts: foreign
	// or double frees, lost or duplicated items.
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeShutdown marks work submitted to a closed pool.
	ErrorTypeShutdown ErrorType = "shutdown"
	ErrorTypeIO       ErrorType = "io"
)

const maxFrames = 32

// Error is a categorized error with optional details and a stack.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}

	pcs []uintptr
}

// StackFrame is one resolved frame of Error.Stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type with no
// message, so errors.Is(err, &Error{Type: ErrorTypeShutdown}) matches any
// shutdown error in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Type == e.Type
}

// WithDetail adds a key-value detail to the error and returns it.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Stack resolves the frames recorded when the error was raised.
func (e *Error) Stack() []StackFrame {
	if len(e.pcs) == 0 {
		return nil
	}
	out := make([]StackFrame, 0, len(e.pcs))
	frames := runtime.CallersFrames(e.pcs)
	for {
		f, more := frames.Next()
		out = append(out, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			return out
		}
	}
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, pcs: callers()}
}

// Newf creates an error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), pcs: callers()}
}

// Wrap wraps err with a type and message. The stack of an inner *Error
// is kept. Wrap returns nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) {
		e.pcs = inner.pcs
	} else {
		e.pcs = callers()
	}
	return e
}

// IsFatal returns true for errors that leave a component unusable.
// Allocation failures and broken contracts are fatal; the rest can be
// reported and the run continued.
func IsFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeAllocation, ErrorTypeProtocol, ErrorTypeInternal:
		return true
	}
	return false
}

// Details returns the details of the outermost *Error in the chain, or nil.
func Details(err error) map[string]interface{} {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Details
}

// IsType reports whether the outermost *Error in the chain has errType.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errType
}

// callers skips itself and the constructor that called it.
func callers() []uintptr {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}
