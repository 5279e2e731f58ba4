// Package execctx implements Context: the thread-safe, acyclic tree of
// per-invocation state that Tool, Agent, and the flow combinators share.
package execctx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/store"
	"github.com/kadirpekel/execore/telemetry"
)

var (
	defaultPoolOnce sync.Once
	defaultPool     *event.Pool
)

func sharedPool() *event.Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = event.NewPool(0)
	})
	return defaultPool
}

// Context is the per-invocation state node described by the core: an id,
// parent/root/children links, single-assign args and attached tool,
// terminal output/exception, three data scopes, an event bus, and a
// one-shot completion signal.
type Context struct {
	id string

	mu       sync.Mutex
	attached any
	parent   *Context
	root     *Context // cached; resolved lazily on first read, always nil on the root itself
	children []*Context

	executing bool
	cancelled bool

	argsSet bool
	args    map[string]any

	output      any
	outputSet   bool
	exception   error
	createdAt   time.Time

	done     chan struct{}
	doneOnce sync.Once

	bus   *event.Bus
	local *store.DataStore
	exec  *store.DataStore // only populated on the root; non-root reads delegate to Root().exec
	dbg   *debugScope

	span trace.Span
}

// New creates a root Context, optionally attaching a tool/agent/LLM.
func New(attached any) *Context {
	return newContext(attached, nil)
}

func newContext(attached any, parent *Context) *Context {
	id := uuid.New().String()
	c := &Context{
		id:        id,
		attached:  attached,
		parent:    parent,
		createdAt: time.Now(),
		done:      make(chan struct{}),
		local:     store.New(),
	}
	c.bus = event.NewBus(c, sharedPool())
	c.dbg = &debugScope{ds: store.New()}
	if parent == nil {
		c.exec = store.New()
	}

	spanName := "context"
	if attached != nil {
		spanName = nameOf(attached)
	}
	_, span := telemetry.Tracer().Start(context.Background(), spanName,
		trace.WithAttributes(attribute.String("execore.context_id", id)))
	c.span = span

	return c
}

// nameOf extracts a human-readable name from attached if it exposes one,
// falling back to a generic label.
func nameOf(attached any) string {
	type named interface{ Name() string }
	if n, ok := attached.(named); ok {
		return n.Name()
	}
	return "context"
}

// ID returns the process-unique identifier, stable across snapshots.
func (c *Context) ID() string { return c.id }

// ChildContext creates a new Context whose parent is c, attached to
// attached, with an auto-installed propagation listener so every event
// emitted anywhere in the child's subtree bubbles up to c (and from there
// to every ancestor).
func (c *Context) ChildContext(attached any) *Context {
	child := newContext(attached, c)
	child.bus.PropagateTo(c.bus)

	c.mu.Lock()
	c.children = append(c.children, child)
	c.mu.Unlock()

	c.bus.Broadcast(event.New(event.TypeChildContextCreated, map[string]any{
		"child_id": child.id,
	}), c)

	return child
}

// Parent returns c's parent, or nil if c is a root.
func (c *Context) Parent() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Root returns the root of c's tree, caching the result after first
// resolution.
func (c *Context) Root() *Context {
	c.mu.Lock()
	if c.parent == nil {
		c.mu.Unlock()
		return c
	}
	if c.root != nil {
		r := c.root
		c.mu.Unlock()
		return r
	}
	c.mu.Unlock()

	r := c.parent.Root()
	c.mu.Lock()
	c.root = r
	c.mu.Unlock()
	return r
}

// Children returns a snapshot of c's child contexts.
func (c *Context) Children() []*Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Context, len(c.children))
	copy(out, c.children)
	return out
}

// Attach assigns the tool/agent/LLM represented by this context. It may
// be called at most once; subsequent calls fail.
func (c *Context) Attach(attached any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached != nil {
		return newError(c.id, KindAlreadySet, "Attach", "context is already attached", nil)
	}
	c.attached = attached
	return nil
}

// Attached returns the tool/agent/LLM this context represents, or nil.
func (c *Context) Attached() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Executing reports whether this context has entered execution.
func (c *Context) Executing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executing
}

// EnterInvocation implements the tool-call context derivation rule: if c
// is already executing, a child context attached to attached is created
// and returned (c is left untouched); otherwise c itself is attached (if
// unattached) and marked executing, and c is returned.
func (c *Context) EnterInvocation(attached any) *Context {
	c.mu.Lock()
	if c.executing {
		c.mu.Unlock()
		return c.ChildContext(attached)
	}
	if c.attached == nil {
		c.attached = attached
	}
	c.executing = true
	c.mu.Unlock()
	return c
}

// SetArgs records the arguments this invocation was called with. It may
// be assigned at most once.
func (c *Context) SetArgs(args map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.argsSet {
		return newError(c.id, KindAlreadySet, "SetArgs", "args already assigned", nil)
	}
	c.args = args
	c.argsSet = true
	return nil
}

// Args returns the arguments captured at invocation, or nil if unset.
func (c *Context) Args() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.args
}

// CreatedAt returns the wall-clock creation time.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Bus returns the event bus owned by this context.
func (c *Context) Bus() *event.Bus { return c.bus }

// Broadcast records (if this context is the source) and dispatches e on
// c's own bus.
func (c *Context) Broadcast(e event.Event) {
	c.bus.Broadcast(e, c)
}

// History returns the events recorded directly on this context.
func (c *Context) History() []event.Event {
	return c.bus.History()
}

// Local returns the local data scope, visible only to this context.
func (c *Context) Local() *store.DataStore { return c.local }

// X returns the execution-wide data scope, physically stored on the
// root and shared across the whole tree.
func (c *Context) X() *store.DataStore { return c.Root().exec }

// Debug returns the debug data scope, which silently no-ops unless the
// global debug flag is enabled.
func (c *Context) Debug() *debugScope { return c.dbg }

// Output returns the terminal success value, or nil if unset.
func (c *Context) Output() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// Exception returns the terminal failure value, or nil if unset.
func (c *Context) Exception() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exception
}

// SetOutput sets the terminal success value. At most one of
// SetOutput/SetException may succeed per (non-cleared) lifetime; a
// second call returns an AlreadySet error and has no effect.
func (c *Context) SetOutput(v any) error {
	c.mu.Lock()
	if c.outputSet || c.exception != nil {
		c.mu.Unlock()
		return newError(c.id, KindAlreadySet, "SetOutput", "a terminal value is already set", nil)
	}
	c.output = v
	c.outputSet = true
	c.mu.Unlock()

	c.signalDone()
	c.endSpan(codes.Ok, "")
	c.bus.Broadcast(event.New(event.TypeContextOutput, v), c)
	c.bus.Broadcast(event.New(event.TypeContextEnd, v), c)
	return nil
}

// SetException sets the terminal failure value. Broadcasting
// TypeToolException is implicit in this setter, per the core's contract.
func (c *Context) SetException(err error) error {
	if err == nil {
		return newError(c.id, KindInvalidState, "SetException", "exception must not be nil", nil)
	}

	c.mu.Lock()
	if c.outputSet || c.exception != nil {
		c.mu.Unlock()
		return newError(c.id, KindAlreadySet, "SetException", "a terminal value is already set", nil)
	}
	c.exception = err
	c.mu.Unlock()

	c.signalDone()
	c.endSpan(codes.Error, err.Error())
	c.bus.Broadcast(event.New(event.TypeToolException, err.Error()), c)
	c.bus.Broadcast(event.New(event.TypeContextEnd, err.Error()), c)
	return nil
}

func (c *Context) endSpan(code codes.Code, description string) {
	if c.span == nil {
		return
	}
	c.span.SetStatus(code, description)
	c.span.End()
}

func (c *Context) signalDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// OnOutput registers a listener that fires exactly once, when this
// context's SetOutput succeeds.
func (c *Context) OnOutput(fn func(*Context, any)) {
	c.bus.OnFiltered(event.TypeContextOutput, func(source event.Source, e event.Event) {
		fn(c, e.Data)
	})
}

// OnException registers a listener that fires exactly once, when this
// context's SetException succeeds.
func (c *Context) OnException(fn func(*Context, error)) {
	c.bus.OnFiltered(event.TypeToolException, func(source event.Source, e event.Event) {
		if c.Exception() != nil {
			fn(c, c.Exception())
		}
	})
}

// OnEnd registers a listener that fires exactly once, on either terminal
// outcome.
func (c *Context) OnEnd(fn func(*Context)) {
	c.bus.OnFiltered(event.TypeContextEnd, func(source event.Source, e event.Event) {
		fn(c)
	})
}
