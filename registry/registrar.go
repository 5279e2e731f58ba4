package registry

import (
	"sync"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
)

// Registrable is the minimal identity every Tool/Agent satisfies; the
// Registrar only needs identity, never the full tool.Tool interface, to
// avoid importing the tool package (which itself imports registry to
// register new tools on construction).
type Registrable interface {
	ID() string
	Name() string
}

// Registrar is the process-wide registry of tools plus a fire-and-forget
// notification bus used by persistence-backed autosave listeners (an
// external collaborator per the spec) to learn about tool/LLM calls.
type Registrar struct {
	tools *BaseRegistry[Registrable]

	mu              sync.RWMutex
	enabled         bool
	toolCallHooks   []func(*execctx.Context)
	llmCallHooks    []func(*execctx.Context)

	pool    *event.Pool
	metrics *Metrics
}

// NewRegistrar creates a standalone Registrar. Most callers should use
// the process-wide singleton returned by Global().
func NewRegistrar() *Registrar {
	return &Registrar{
		tools:   NewBaseRegistry[Registrable](),
		enabled: true,
		pool:    event.NewPool(0),
		metrics: NewMetrics(),
	}
}

var (
	globalOnce sync.Once
	global     *Registrar
)

// Global returns the process-wide Registrar singleton. Its Prometheus
// counters also back the event bus's dispatch counter.
func Global() *Registrar {
	globalOnce.Do(func() {
		global = NewRegistrar()
		event.SetDispatchCounter(global.metrics.EventsDispatched)
	})
	return global
}

// Metrics returns the Prometheus counters backing this Registrar.
func (r *Registrar) Metrics() *Metrics { return r.metrics }

// Register adds item to the tool table. It is idempotent by id: a
// second registration of the same id is a silent no-op rather than an
// error, since constructors may legitimately be called more than once
// during tests.
func (r *Registrar) Register(item Registrable) {
	if _, exists := r.tools.Get(item.ID()); exists {
		return
	}
	_ = r.tools.Register(item.ID(), item)
}

// Lookup finds a previously-registered tool by id.
func (r *Registrar) Lookup(id string) (Registrable, bool) {
	return r.tools.Get(id)
}

// All returns every registered tool.
func (r *Registrar) All() []Registrable {
	return r.tools.List()
}

// Enable turns notification dispatch on (the default).
func (r *Registrar) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Disable turns notification dispatch off; hooks are retained and will
// fire again once re-enabled.
func (r *Registrar) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// OnToolCall subscribes fn to every future tool-call notification.
func (r *Registrar) OnToolCall(fn func(*execctx.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCallHooks = append(r.toolCallHooks, fn)
}

// OnLLMCall subscribes fn to every future llm-call notification.
func (r *Registrar) OnLLMCall(fn func(*execctx.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmCallHooks = append(r.llmCallHooks, fn)
}

// NotifyToolCall broadcasts a tool-call notification to subscribed hooks
// and increments the tool-call counter. Dispatch happens on the
// Registrar's own worker pool; this call never blocks on a hook.
func (r *Registrar) NotifyToolCall(ctx *execctx.Context) {
	r.metrics.ToolCalls.Inc()

	r.mu.RLock()
	enabled := r.enabled
	hooks := append([]func(*execctx.Context){}, r.toolCallHooks...)
	r.mu.RUnlock()

	if !enabled {
		return
	}
	for _, h := range hooks {
		hook := h
		r.pool.Submit(func() { hook(ctx) })
	}
}

// NotifyLLMCall broadcasts an llm-call notification, mirroring
// NotifyToolCall.
func (r *Registrar) NotifyLLMCall(ctx *execctx.Context) {
	r.metrics.LLMCalls.Inc()

	r.mu.RLock()
	enabled := r.enabled
	hooks := append([]func(*execctx.Context){}, r.llmCallHooks...)
	r.mu.RUnlock()

	if !enabled {
		return
	}
	for _, h := range hooks {
		hook := h
		r.pool.Submit(func() { hook(ctx) })
	}
}
