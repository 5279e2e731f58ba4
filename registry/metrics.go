package registry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the Registrar increments on
// every tool/llm lifecycle notification. Callers that want these scraped
// must register Metrics.Registry() with their own HTTP exposition
// endpoint; that wiring is outside this module's scope (§1 of the spec:
// transports are external collaborators).
type Metrics struct {
	registry           *prometheus.Registry
	ToolCalls          prometheus.Counter
	LLMCalls           prometheus.Counter
	EventsDispatched   prometheus.Counter
	ParallelListItems  prometheus.Counter
	DoWhileIterations  prometheus.Counter
}

// NewMetrics creates a fresh, isolated Prometheus registry and its
// counters. Using a dedicated registry (rather than the global default)
// keeps repeated test construction from panicking on duplicate
// registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ToolCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execore_tool_calls_total",
			Help: "Total number of tool invocations recorded by the Registrar.",
		}),
		LLMCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execore_llm_calls_total",
			Help: "Total number of LLM invocations recorded by the Registrar.",
		}),
		EventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execore_events_dispatched_total",
			Help: "Total number of events dispatched to listeners across all event buses.",
		}),
		ParallelListItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execore_parallel_list_items_total",
			Help: "Total number of per-item invocations run by ParallelList across all fan-outs.",
		}),
		DoWhileIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execore_dowhile_iterations_total",
			Help: "Total number of DoWhile loop iterations executed.",
		}),
	}
	reg.MustRegister(m.ToolCalls, m.LLMCalls, m.EventsDispatched, m.ParallelListItems, m.DoWhileIterations)
	return m
}

// Registry exposes the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
