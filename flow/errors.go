// Package flow implements the three tool combinators that compose other
// tools: Linear (sequential pipeline), DoWhile (condition-controlled
// loop), and ParallelList (fan-out with completion/error strategies).
package flow

import (
	"fmt"
	"time"
)

// Kind enumerates the combinator-specific error taxonomy.
type Kind string

const (
	KindStepException         Kind = "StepException"
	KindMaxIterationsExceeded Kind = "MaxIterationsExceeded"
	KindInvalidConfiguration  Kind = "InvalidConfiguration"
)

// Error is the structured error Linear/DoWhile/ParallelList raise.
type Error struct {
	Kind      Kind
	ToolName  string
	Index     int
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStepException:
		return fmt.Sprintf("%s: step %d failed: %v", e.ToolName, e.Index, e.Err)
	case KindMaxIterationsExceeded:
		return fmt.Sprintf("%s: exceeded max_iterations: %s", e.ToolName, e.Message)
	case KindInvalidConfiguration:
		return fmt.Sprintf("%s: invalid configuration: %s", e.ToolName, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.ToolName, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewStepException wraps a Linear step failure, preserving its index.
func NewStepException(toolName string, index int, cause error) *Error {
	return &Error{Kind: KindStepException, ToolName: toolName, Index: index, Err: cause, Timestamp: time.Now()}
}

// NewMaxIterationsExceededError builds the error a DoWhile raises when it
// would exceed its configured cap.
func NewMaxIterationsExceededError(toolName string, maxIterations int) *Error {
	return &Error{
		Kind:      KindMaxIterationsExceeded,
		ToolName:  toolName,
		Message:   fmt.Sprintf("iteration would exceed max_iterations=%d", maxIterations),
		Timestamp: time.Now(),
	}
}

// NewInvalidConfigurationError flags a combinator constructed with an
// unusable configuration: a Linear without steps, a DoWhile without a
// stop_condition, or a ParallelList with an unknown completion/error
// strategy or a missing completion_count.
func NewInvalidConfigurationError(toolName, message string) *Error {
	return &Error{Kind: KindInvalidConfiguration, ToolName: toolName, Message: message, Timestamp: time.Now()}
}
