package execctx

// Status is the externally-observable lifecycle state of a Context,
// computed from its terminal fields rather than stored directly.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Status computes the current status: error takes precedence over
// complete, which takes precedence over cancelled, which takes
// precedence over running.
func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.exception != nil:
		return StatusError
	case c.outputSet:
		return StatusComplete
	case c.cancelled:
		return StatusCancelled
	default:
		return StatusRunning
	}
}

// Cancel marks c cancelled. It only succeeds while c is still running; it
// fails if c has already reached a terminal output/exception state.
// Global cancellation propagation is not guaranteed (flow.ParallelList
// implements its own future cancellation); this flag only affects
// Status().
func (c *Context) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outputSet || c.exception != nil {
		return newError(c.id, KindInvalidState, "Cancel", "context has already reached a terminal state", nil)
	}
	c.cancelled = true
	return nil
}
