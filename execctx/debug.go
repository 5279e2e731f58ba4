package execctx

import "sync/atomic"

var debugEnabled atomic.Bool

// EnableDebug turns on the global debug data scope.
func EnableDebug() { debugEnabled.Store(true) }

// DisableDebug turns off the global debug data scope; existing debug
// data is retained but becomes unreadable/unwritable until re-enabled.
func DisableDebug() { debugEnabled.Store(false) }

// DebugEnabled reports whether the global debug flag is currently on.
func DebugEnabled() bool { return debugEnabled.Load() }

// debugScope mirrors store.DataStore's API but silently drops every
// operation while the global debug flag is off, per the core's
// "debug data is stored only when a global debug flag is on; silently
// dropped otherwise" contract.
type debugScope struct {
	ds dataStoreLike
}

// dataStoreLike is satisfied by store.DataStore; declared here only to
// give debugScope a named field type without importing store twice.
type dataStoreLike = interface {
	Get(key string, default_ any) any
	Set(key string, v any)
	Contains(key string) bool
	Delete(key string)
	Init(key string, v any) any
	Update(key string, fn func(current any) any) any
	Increment(key string, n float64) float64
	Decrement(key string, n float64) float64
	Append(key string, v any) []any
	Concat(key string, v any) any
	Operate(keys []string, fn func(current []any) []any) []any
	Snapshot() map[string]any
}

func (d *debugScope) Get(key string, default_ any) any {
	if !DebugEnabled() {
		return default_
	}
	return d.ds.Get(key, default_)
}

func (d *debugScope) Set(key string, v any) {
	if !DebugEnabled() {
		return
	}
	d.ds.Set(key, v)
}

func (d *debugScope) Contains(key string) bool {
	if !DebugEnabled() {
		return false
	}
	return d.ds.Contains(key)
}

func (d *debugScope) Delete(key string) {
	if !DebugEnabled() {
		return
	}
	d.ds.Delete(key)
}

func (d *debugScope) Init(key string, v any) any {
	if !DebugEnabled() {
		return v
	}
	return d.ds.Init(key, v)
}

func (d *debugScope) Update(key string, fn func(current any) any) any {
	if !DebugEnabled() {
		return nil
	}
	return d.ds.Update(key, fn)
}

func (d *debugScope) Increment(key string, n float64) float64 {
	if !DebugEnabled() {
		return 0
	}
	return d.ds.Increment(key, n)
}

func (d *debugScope) Decrement(key string, n float64) float64 {
	if !DebugEnabled() {
		return 0
	}
	return d.ds.Decrement(key, n)
}

func (d *debugScope) Append(key string, v any) []any {
	if !DebugEnabled() {
		return nil
	}
	return d.ds.Append(key, v)
}

func (d *debugScope) Concat(key string, v any) any {
	if !DebugEnabled() {
		return nil
	}
	return d.ds.Concat(key, v)
}

func (d *debugScope) Operate(keys []string, fn func(current []any) []any) []any {
	if !DebugEnabled() {
		return nil
	}
	return d.ds.Operate(keys, fn)
}

func (d *debugScope) Snapshot() map[string]any {
	if !DebugEnabled() {
		return nil
	}
	return d.ds.Snapshot()
}
