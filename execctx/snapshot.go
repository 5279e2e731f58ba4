package execctx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/execore/event"
)

// Snapshot is the deterministic, JSON-serializable projection of a
// Context produced by ToJSON. Listeners and worker pools are never
// serialized; a loaded snapshot is terminal if it had terminated.
type Snapshot struct {
	ID        string           `json:"id"`
	ParentID  string           `json:"parent_id,omitempty"`
	RootID    string           `json:"root_id"`
	ToolID    string           `json:"tool_id,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
	Status    Status           `json:"status"`
	Args      map[string]any   `json:"args,omitempty"`
	Output    any              `json:"output,omitempty"`
	History   []map[string]any `json:"history"`
	CreatedAt string           `json:"created_at"`
	Children  []*Snapshot      `json:"children"`
	Error     string           `json:"error,omitempty"`
	Data      map[string]any   `json:"data"`
	Execution map[string]any   `json:"execution,omitempty"`
}

type identified interface {
	ID() string
}

type named interface {
	Name() string
}

// ToJSON produces a deterministic snapshot of c and its descendants. The
// execution scope ("x") is carried only on the root's snapshot, never on
// a non-root's, per the core's invariant.
func (c *Context) ToJSON() *Snapshot {
	c.mu.Lock()
	parentID := ""
	if c.parent != nil {
		parentID = c.parent.id
	}
	toolID, toolName := toolIdentity(c.attached)
	errStr := ""
	if c.exception != nil {
		errStr = c.exception.Error()
	}
	output := c.output
	args := c.args
	children := append([]*Context{}, c.children...)
	c.mu.Unlock()

	childSnapshots := make([]*Snapshot, len(children))
	for i, child := range children {
		childSnapshots[i] = child.ToJSON()
	}

	history := c.History()
	historyJSON := make([]map[string]any, len(history))
	for i, e := range history {
		historyJSON[i] = e.ToJSON()
	}

	snap := &Snapshot{
		ID:        c.id,
		ParentID:  parentID,
		RootID:    c.Root().id,
		ToolID:    toolID,
		ToolName:  toolName,
		Status:    c.Status(),
		Args:      args,
		Output:    outputToJSON(output),
		History:   historyJSON,
		CreatedAt: c.createdAt.Format(timeLayout),
		Children:  childSnapshots,
		Error:     errStr,
		Data:      c.local.Snapshot(),
	}
	if c.parent == nil {
		snap.Execution = c.exec.Snapshot()
	}
	return snap
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func toolIdentity(attached any) (id string, name string) {
	if attached == nil {
		return "", ""
	}
	if i, ok := attached.(identified); ok {
		id = i.ID()
	}
	if n, ok := attached.(named); ok {
		name = n.Name()
	}
	return id, name
}

// jsonable mirrors a to_json()-style escape hatch for output values that
// know how to render themselves; anything else is passed through as-is
// and left to encoding/json, or coerced to a string if it cannot
// marshal cleanly.
type jsonable interface {
	ToJSON() any
}

func outputToJSON(v any) any {
	if v == nil {
		return nil
	}
	if j, ok := v.(jsonable); ok {
		return j.ToJSON()
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}

// FromJSON rehydrates a detached Context tree from a Snapshot. The
// result carries no attached tool (snapshots only record tool id/name
// for display), no listeners, and is terminal iff the snapshot recorded
// a terminal status.
func FromJSON(snap *Snapshot) (*Context, error) {
	if snap == nil {
		return nil, fmt.Errorf("execctx: nil snapshot")
	}
	return fromJSON(snap, nil)
}

func fromJSON(snap *Snapshot, parent *Context) (*Context, error) {
	c := newContext(nil, parent)
	if snap.ID != "" {
		c.id = snap.ID // ids are stable across snapshots
	}
	if ts, err := time.Parse(timeLayout, snap.CreatedAt); err == nil {
		c.createdAt = ts
	}
	c.local.Restore(snap.Data)
	if parent == nil {
		c.exec.Restore(snap.Execution)
	}
	if err := c.SetArgs(snap.Args); err != nil {
		return nil, err
	}

	switch snap.Status {
	case StatusComplete:
		c.executing = true
		if err := c.SetOutput(snap.Output); err != nil {
			return nil, err
		}
	case StatusError:
		c.executing = true
		if err := c.SetException(fmt.Errorf("%s", snap.Error)); err != nil {
			return nil, err
		}
	case StatusCancelled:
		c.executing = true
		_ = c.Cancel()
	}

	// Replace the history wholesale after the terminal replay above:
	// the snapshot's history already carries the terminal events the
	// original run recorded, in their original order.
	events := make([]event.Event, len(snap.History))
	for i, h := range snap.History {
		events[i] = event.FromJSON(h)
	}
	c.bus.RestoreHistory(events)

	for _, childSnap := range snap.Children {
		child, err := fromJSON(childSnap, c)
		if err != nil {
			return nil, err
		}
		child.bus.PropagateTo(c.bus)
		c.children = append(c.children, child)
	}

	return c, nil
}
