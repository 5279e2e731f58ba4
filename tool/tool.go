// Package tool implements the uniform callable contract every function,
// agent, LLM wrapper, and flow combinator in this module satisfies:
// argument validation, context derivation, lifecycle events, async calls,
// and retry.
package tool

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/registry"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/telemetry"
)

// InvokeFunc is the function a Tool wraps. kwargs is already
// default-filled and validated by the time invoke runs.
type InvokeFunc func(ctx *execctx.Context, kwargs map[string]any) (any, error)

// Tool is the uniform callable contract. Flow combinators (Linear,
// DoWhile, ParallelList) and Agent all implement it.
type Tool interface {
	ID() string
	Name() string
	Description() string
	Arguments() []schema.Argument
	Result() *schema.Result
	Examples() []schema.Example

	Call(ctx *execctx.Context, kwargs map[string]any) (any, error)
	AsyncCall(ctx *execctx.Context, kwargs map[string]any) *execctx.Context
	Retry(ctx *execctx.Context) (any, error)

	ToJSON() map[string]any
}

var _ registry.Registrable = (*BaseTool)(nil)
var _ Tool = (*BaseTool)(nil)

// BaseTool is the concrete Tool implementation every constructor in this
// package (New, Toolify, WrapStepFunc) and every Agent builds on.
type BaseTool struct {
	id          string
	name        string
	description string
	args        []schema.Argument
	result      *schema.Result
	examples    []schema.Example
	invoke      InvokeFunc
}

// Option customizes a BaseTool at construction.
type Option func(*BaseTool)

// WithID overrides the generated id (useful for deterministic test
// fixtures and snapshot round-trips).
func WithID(id string) Option {
	return func(t *BaseTool) { t.id = id }
}

// WithResult attaches documentation for the tool's return value.
func WithResult(r schema.Result) Option {
	return func(t *BaseTool) { t.result = &r }
}

// WithExamples attaches example invocations for tool metadata.
func WithExamples(examples ...schema.Example) Option {
	return func(t *BaseTool) { t.examples = examples }
}

var (
	poolOnce sync.Once
	poolInst *event.Pool
)

// pool returns the worker pool backing every BaseTool's AsyncCall.
func pool() *event.Pool {
	poolOnce.Do(func() { poolInst = event.NewPool(0) })
	return poolInst
}

// New builds a BaseTool around invoke and registers it with the global
// Registrar. Most callers use Toolify or an Agent constructor instead of
// calling New directly.
func New(name, description string, args []schema.Argument, invoke InvokeFunc, opts ...Option) *BaseTool {
	t := &BaseTool{
		id:          uuid.New().String(),
		name:        name,
		description: description,
		args:        args,
		invoke:      invoke,
	}
	for _, opt := range opts {
		opt(t)
	}
	registry.Global().Register(t)
	return t
}

func (t *BaseTool) ID() string                     { return t.id }
func (t *BaseTool) Name() string                   { return t.name }
func (t *BaseTool) Description() string            { return t.description }
func (t *BaseTool) Arguments() []schema.Argument   { return t.args }
func (t *BaseTool) Result() *schema.Result         { return t.result }
func (t *BaseTool) Examples() []schema.Example     { return t.examples }

// Call validates args, derives a context, invokes the wrapped function,
// and records the outcome. See execute for the shared body also used by
// AsyncCall and Retry.
func (t *BaseTool) Call(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	derived := ctx
	if derived == nil {
		derived = execctx.New(nil)
	}
	derived = derived.EnterInvocation(t)
	return t.execute(derived, kwargs)
}

// AsyncCall derives the context synchronously then runs execute on the
// shared worker pool, returning the context immediately.
func (t *BaseTool) AsyncCall(ctx *execctx.Context, kwargs map[string]any) *execctx.Context {
	derived := ctx
	if derived == nil {
		derived = execctx.New(nil)
	}
	derived = derived.EnterInvocation(t)
	pool().Submit(func() {
		_, _ = t.execute(derived, kwargs)
	})
	return derived
}

// Retry replays the invocation on the same ctx, reusing ctx.Args(), after
// clearing its terminal state. Flow combinators override this with their
// own partial-retry semantics.
func (t *BaseTool) Retry(ctx *execctx.Context) (any, error) {
	ctx.Clear(true, true)
	return t.execute(ctx, ctx.Args())
}

func (t *BaseTool) execute(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	filled := schema.FillDefaults(t.args, kwargs)

	missing := schema.MissingRequired(t.args, filled)
	extra := schema.Extraneous(t.args, filled)
	if len(missing) > 0 || len(extra) > 0 {
		err := NewInvalidArgumentError(t.name, missing, extra)
		telemetry.Logger().Warn("tool call rejected", "tool", t.name, "context_id", ctx.ID(), "missing", missing, "extraneous", extra)
		_ = ctx.SetException(err)
		return nil, err
	}

	_ = ctx.SetArgs(filled) // AlreadySet on retry is expected and harmless: args are unchanged.
	ctx.Broadcast(event.New(event.TypeToolCalled, filled))
	registry.Global().NotifyToolCall(ctx)
	telemetry.Logger().Debug("tool called", "tool", t.name, "context_id", ctx.ID())

	out, err := t.invoke(ctx, filled)
	if err != nil {
		telemetry.Logger().Error("tool failed", "tool", t.name, "context_id", ctx.ID(), "error", err)
		_ = ctx.SetException(err)
		return nil, err
	}

	if err := ctx.SetOutput(out); err != nil {
		return nil, err
	}
	ctx.Broadcast(event.New(event.TypeToolReturn, out))
	telemetry.Logger().Debug("tool returned", "tool", t.name, "context_id", ctx.ID())
	return out, nil
}

// ToJSON projects tool metadata for external consumers.
func (t *BaseTool) ToJSON() map[string]any {
	argsJSON := make([]map[string]any, len(t.args))
	for i, a := range t.args {
		argsJSON[i] = a.ToJSON()
	}
	examplesJSON := make([]map[string]any, len(t.examples))
	for i, e := range t.examples {
		examplesJSON[i] = map[string]any{
			"description": e.Description,
			"args":        e.Args,
			"output":      e.Output,
		}
	}
	out := map[string]any{
		"id":          t.id,
		"name":        t.name,
		"description": t.description,
		"args":        argsJSON,
		"examples":    examplesJSON,
	}
	if t.result != nil {
		out["result"] = map[string]any{"type": t.result.Type, "description": t.result.Description}
	}
	return out
}
