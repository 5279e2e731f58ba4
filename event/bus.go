package event

import (
	"sync"
	"sync/atomic"
)

// Counter is the fragment of prometheus.Counter the bus needs to count
// listener dispatches; declared locally so this package stays free of a
// metrics dependency.
type Counter interface {
	Inc()
}

var dispatchCounter atomic.Value // Counter

// SetDispatchCounter installs the counter incremented once per listener
// dispatch across every Bus. The Registrar wires its Prometheus counter
// here; nil-safe until then.
func SetDispatchCounter(c Counter) {
	dispatchCounter.Store(c)
}

func countDispatch() {
	if c, ok := dispatchCounter.Load().(Counter); ok && c != nil {
		c.Inc()
	}
}

// Source identifies the context an event originated on. execctx.Context
// satisfies this interface; the event package only needs the identity,
// never the full Context, to avoid a circular import.
type Source interface {
	ID() string
}

// Listener receives events dispatched by a Bus. source is the context the
// event actually originated on, which may differ from the Bus's own
// owner when the event propagated up from a descendant.
type Listener func(source Source, e Event)

// Bus is the event history plus listener tables owned by a single
// context. It implements the propagating/filtered split described by the
// core's listener model: propagating listeners fire for this context's
// own events and for every event bubbled up from a descendant; filtered
// listeners fire only for this context's own events.
type Bus struct {
	mu   sync.Mutex
	self Source
	pool *Pool

	history     []Event
	propagating map[string][]Listener
	filtered    map[string][]Listener
}

// NewBus creates a Bus owned by self, dispatching listeners on pool.
func NewBus(self Source, pool *Pool) *Bus {
	return &Bus{
		self:        self,
		pool:        pool,
		propagating: make(map[string][]Listener),
		filtered:    make(map[string][]Listener),
	}
}

// OnAny registers a propagating listener for every event type.
func (b *Bus) OnAny(fn Listener) {
	b.On(AllTypes, fn)
}

// On registers a propagating listener for eventType (or AllTypes).
func (b *Bus) On(eventType string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.propagating[eventType] = append(b.propagating[eventType], fn)
}

// OnFilteredAny registers an ignore-children listener for every event
// type: it only fires for events whose source equals this bus's owner.
func (b *Bus) OnFilteredAny(fn Listener) {
	b.OnFiltered(AllTypes, fn)
}

// OnFiltered registers an ignore-children listener for eventType.
func (b *Bus) OnFiltered(eventType string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filtered[eventType] = append(b.filtered[eventType], fn)
}

// History returns a copy of the events recorded directly on this bus's
// owner (not events merely propagated through it).
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// RestoreHistory replaces the recorded history wholesale, without
// dispatching any listener. Used when rehydrating a context from a
// snapshot, where the events already happened.
func (b *Bus) RestoreHistory(events []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append([]Event(nil), events...)
}

// Broadcast records and dispatches e. source is the context e actually
// originated on; pass the bus's own owner for locally-emitted events, or
// a descendant's identity when relaying a propagated event.
func (b *Bus) Broadcast(e Event, source Source) {
	isLocal := source == b.self

	b.mu.Lock()
	if isLocal {
		b.history = append(b.history, e)
	}
	matching := append(append([]Listener{}, b.propagating[e.Type]...), b.propagating[AllTypes]...)
	if isLocal {
		matching = append(matching, b.filtered[e.Type]...)
		matching = append(matching, b.filtered[AllTypes]...)
	}
	b.mu.Unlock()

	for _, fn := range matching {
		listener := fn
		countDispatch()
		b.pool.Submit(func() {
			listener(source, e)
		})
	}
}

// PropagateTo installs, on this bus, a propagating listener that
// re-broadcasts every event observed here onto parentBus with the
// original source preserved. Installing this on a child's bus at
// creation time is how a whole subtree becomes observable from any
// ancestor without duplicating history at each hop.
func (b *Bus) PropagateTo(parentBus *Bus) {
	b.OnAny(func(source Source, e Event) {
		parentBus.Broadcast(e, source)
	})
}
