package agent

import (
	"fmt"
	"time"
)

// Kind enumerates the agent-specific error taxonomy.
type Kind string

const (
	KindMaxStepsExceeded Kind = "MaxStepsExceeded"
	KindResponseException Kind = "ResponseException"
)

// Error is the structured error an Agent/IterativeAgent raises.
type Error struct {
	AgentName string
	Kind      Kind
	MaxSteps  int
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMaxStepsExceeded:
		return fmt.Sprintf("agent %q: exceeded max_steps=%d without a terminal result", e.AgentName, e.MaxSteps)
	case KindResponseException:
		return fmt.Sprintf("agent %q: failed to extract a result: %s", e.AgentName, e.Message)
	default:
		return fmt.Sprintf("agent %q: %s", e.AgentName, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewMaxStepsExceededError builds the MaxStepsExceeded error an
// IterativeAgent raises when extract_result never returns a non-nil
// value within max_steps iterations.
func NewMaxStepsExceededError(agentName string, maxSteps int) *Error {
	return &Error{AgentName: agentName, Kind: KindMaxStepsExceeded, MaxSteps: maxSteps, Timestamp: time.Now()}
}

// NewResponseError wraps an extract_result failure.
func NewResponseError(agentName string, err error) *Error {
	return &Error{AgentName: agentName, Kind: KindResponseException, Message: err.Error(), Err: err, Timestamp: time.Now()}
}
