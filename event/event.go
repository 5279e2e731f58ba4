// Package event implements the typed event record and the per-context
// event bus that dispatches listeners on a bounded worker pool.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Well-known event types emitted by the core. Domain code may broadcast
// custom event types; the bus treats every type as an opaque string.
const (
	TypeToolCalled          = "ToolCalled"
	TypeToolReturn          = "ToolReturn"
	TypeToolException       = "ToolException"
	TypeChildContextCreated = "ChildContextCreated"
	TypeContextUpdate       = "ContextUpdate"
	TypeContextOutput       = "ContextOutput"
	TypeContextEnd          = "ContextEnd"
	TypeLLMCalled           = "LLMCalled"
	TypeLLMResponse         = "LLMResponse"
	TypeAgentBackendStep    = "AgentBackendStep"
	TypeAgentPrompt         = "AgentPrompt"
	TypeAgentLLMResponse    = "AgentLLMResponse"
	TypeAgentToolCalls      = "AgentToolCalls"
)

// AllTypes is the special listener bucket key that matches every event
// type.
const AllTypes = "all"

// Event is an immutable record appended to a context's history and
// dispatched to listeners.
type Event struct {
	ID        uuid.UUID
	Type      string
	Monotonic time.Duration // elapsed since process start, for ordering
	Wall      time.Time     // wall-clock time, for display
	Data      any
}

// New creates an Event of the given type carrying data, stamped with the
// current wall-clock time and elapsed monotonic duration since start.
func New(eventType string, data any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Monotonic: time.Since(processStart),
		Wall:      time.Now(),
		Data:      data,
	}
}

var processStart = time.Now()

// ToJSON returns a JSON-serializable projection of the event.
func (e Event) ToJSON() map[string]any {
	return map[string]any{
		"id":        e.ID.String(),
		"type":      e.Type,
		"monotonic": e.Monotonic.Nanoseconds(),
		"wall":      e.Wall.Format(time.RFC3339Nano),
		"data":      e.Data,
	}
}

// FromJSON rebuilds an Event from its ToJSON projection. Fields that
// fail to parse are left at their zero value rather than erroring: a
// snapshot's history is display/replay data, not a validated input.
func FromJSON(m map[string]any) Event {
	var e Event
	if s, ok := m["id"].(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			e.ID = id
		}
	}
	e.Type, _ = m["type"].(string)
	switch n := m["monotonic"].(type) {
	case int64:
		e.Monotonic = time.Duration(n)
	case float64:
		e.Monotonic = time.Duration(n)
	}
	if s, ok := m["wall"].(string); ok {
		if wall, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Wall = wall
		}
	}
	e.Data = m["data"]
	return e
}
