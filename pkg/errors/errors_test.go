package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	err := Wrap(io.EOF, ErrorTypeIO, "read")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, io.EOF))
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "read"))
}

func TestStackStartsAtCaller(t *testing.T) {
	stack := New(ErrorTypeInternal, "boom").Stack()
	require.NotEmpty(t, stack)
	assert.True(t, strings.HasSuffix(stack[0].Function, "TestStackStartsAtCaller"), stack[0].Function)
	assert.True(t, strings.HasSuffix(stack[0].File, "errors_test.go"))
	assert.Nil(t, (&Error{}).Stack())
}

func TestWrapKeepsInnerStack(t *testing.T) {
	inner := New(ErrorTypeAllocation, "no room")
	outer := Wrap(fmt.Errorf("scenario: %w", inner), ErrorTypeInternal, "stress run")
	assert.Equal(t, inner.Stack(), outer.Stack())
	assert.True(t, IsType(outer, ErrorTypeInternal))
	assert.False(t, IsType(outer, ErrorTypeAllocation), "IsType looks at the outermost error")
}

func TestIsMatchesType(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(ErrorTypeShutdown, "pool closed"))
	assert.ErrorIs(t, err, &Error{Type: ErrorTypeShutdown})
	assert.NotErrorIs(t, err, &Error{Type: ErrorTypeIO})
	assert.NotErrorIs(t, err, &Error{Type: ErrorTypeShutdown, Message: "other"})
}

func TestDetails(t *testing.T) {
	err := New(ErrorTypeProtocol, "dup").WithDetail("item", 7)
	assert.Equal(t, 7, Details(err)["item"])
	assert.Nil(t, Details(io.EOF))
}
