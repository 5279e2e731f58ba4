package tool

import (
	"fmt"
	"time"
)

// Kind enumerates the error taxonomy the core raises around tool
// invocation, independent of errors a wrapped function itself returns.
type Kind string

const (
	KindInvalidArgument Kind = "InvalidArgument"
	KindNotFound        Kind = "ToolNotFound"
)

// Error is the structured error raised by Tool.Call before invoke runs,
// or by a dispatch table that cannot find a named tool.
type Error struct {
	ToolName  string
	Kind      Kind
	Missing   []string
	Extra     []string
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidArgument:
		return fmt.Sprintf("tool %q: invalid arguments: missing=%v extraneous=%v", e.ToolName, e.Missing, e.Extra)
	case KindNotFound:
		return fmt.Sprintf("tool %q: not found", e.ToolName)
	default:
		return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewInvalidArgumentError builds the InvalidArgument error naming both
// the missing-required and extraneous argument lists, per the core's
// validation contract.
func NewInvalidArgumentError(toolName string, missing, extra []string) *Error {
	return &Error{
		ToolName:  toolName,
		Kind:      KindInvalidArgument,
		Missing:   missing,
		Extra:     extra,
		Timestamp: time.Now(),
	}
}

// NewNotFoundError builds a ToolNotFound error for dispatch-table lookups.
func NewNotFoundError(toolName string) *Error {
	return &Error{
		ToolName:  toolName,
		Kind:      KindNotFound,
		Timestamp: time.Now(),
	}
}
