// Package store implements the thread-safe, nested-path key/value store
// that backs every execctx.Context data scope (local, execution, debug).
package store

import (
	"strings"
	"sync"
)

// DataStore is a thread-safe mapping supporting dotted nested-path access
// ("a.b.c" walks dict -> dict -> value). All public methods are atomic
// with respect to each other.
type DataStore struct {
	mu   sync.Mutex
	root map[string]any
}

// New creates an empty DataStore.
func New() *DataStore {
	return &DataStore{root: make(map[string]any)}
}

func splitPath(key string) []string {
	return strings.Split(key, ".")
}

// navigate walks parts[:len-1] from root, creating intermediate maps when
// create is true. It returns the parent map holding the final segment and
// the final segment's name, or ok=false if the path does not exist and
// create is false.
func navigate(root map[string]any, parts []string, create bool) (map[string]any, string, bool) {
	cur := root
	for _, p := range parts[:len(parts)-1] {
		next, exists := cur[p]
		if !exists {
			if !create {
				return nil, "", false
			}
			m := make(map[string]any)
			cur[p] = m
			cur = m
			continue
		}
		m, isMap := next.(map[string]any)
		if !isMap {
			if !create {
				return nil, "", false
			}
			m = make(map[string]any)
			cur[p] = m
		}
		cur = m
	}
	return cur, parts[len(parts)-1], true
}

// Get returns the value stored at key, or default_ if absent.
func (d *DataStore) Get(key string, default_ any) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, ok := navigate(d.root, splitPath(key), false)
	if !ok {
		return default_
	}
	v, exists := parent[last]
	if !exists {
		return default_
	}
	return v
}

// Set stores v at key, creating intermediate maps as needed.
func (d *DataStore) Set(key string, v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setLocked(key, v)
}

func (d *DataStore) setLocked(key string, v any) {
	parent, last, _ := navigate(d.root, splitPath(key), true)
	parent[last] = v
}

// Contains reports whether key holds a value.
func (d *DataStore) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, ok := navigate(d.root, splitPath(key), false)
	if !ok {
		return false
	}
	_, exists := parent[last]
	return exists
}

// Delete removes key if present. Deleting an absent key is a no-op.
func (d *DataStore) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, ok := navigate(d.root, splitPath(key), false)
	if !ok {
		return
	}
	delete(parent, last)
}

// Init sets key to v only if absent, then returns the final (possibly
// pre-existing) value.
func (d *DataStore) Init(key string, v any) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, _ := navigate(d.root, splitPath(key), true)
	if existing, exists := parent[last]; exists {
		return existing
	}
	parent[last] = v
	return v
}

// Update atomically sets key to fn(current value of key).
func (d *DataStore) Update(key string, fn func(current any) any) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, _ := navigate(d.root, splitPath(key), true)
	next := fn(parent[last])
	parent[last] = next
	return next
}

// Increment atomically adds n to the numeric value at key, initializing
// it to 0 if absent. Returns the resulting value.
func (d *DataStore) Increment(key string, n float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, _ := navigate(d.root, splitPath(key), true)
	result := toFloat(parent[last]) + n
	parent[last] = result
	return result
}

// Decrement is Increment with the sign of n flipped.
func (d *DataStore) Decrement(key string, n float64) float64 {
	return d.Increment(key, -n)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Append atomically pushes v onto the list at key, initializing it to an
// empty list if absent.
func (d *DataStore) Append(key string, v any) []any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, _ := navigate(d.root, splitPath(key), true)
	list := toList(parent[last])
	list = append(list, v)
	parent[last] = list
	return list
}

func toList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

// Concat atomically extends a list (v must itself be a []any) or appends
// to a string (v must be a string), based on the current type at key. If
// key is absent, it is initialized based on v's own type.
func (d *DataStore) Concat(key string, v any) any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, last, _ := navigate(d.root, splitPath(key), true)
	current, exists := parent[last]
	if !exists {
		switch v.(type) {
		case string:
			parent[last] = v
		default:
			if l, ok := v.([]any); ok {
				cp := append([]any(nil), l...)
				parent[last] = cp
			} else {
				parent[last] = []any{v}
			}
		}
		return parent[last]
	}

	switch cur := current.(type) {
	case string:
		s, _ := v.(string)
		result := cur + s
		parent[last] = result
		return result
	case []any:
		if l, ok := v.([]any); ok {
			result := append(append([]any(nil), cur...), l...)
			parent[last] = result
			return result
		}
		result := append(append([]any(nil), cur...), v)
		parent[last] = result
		return result
	default:
		parent[last] = v
		return v
	}
}

// Operate performs an atomic compound update over a set of keys. fn
// receives the current values (in the order of keys) and returns the new
// values in the same order. fn must not call back into this DataStore -
// doing so deadlocks since Operate already holds the lock.
func (d *DataStore) Operate(keys []string, fn func(current []any) []any) []any {
	d.mu.Lock()
	defer d.mu.Unlock()

	parents := make([]map[string]any, len(keys))
	lasts := make([]string, len(keys))
	current := make([]any, len(keys))
	for i, k := range keys {
		parent, last, _ := navigate(d.root, splitPath(k), true)
		parents[i] = parent
		lasts[i] = last
		current[i] = parent[last]
	}

	next := fn(current)
	for i := range keys {
		parents[i][lasts[i]] = next[i]
	}
	return next
}

// Snapshot returns a shallow copy of the store's top-level entries,
// suitable for JSON serialization. Nested maps are not deep-copied: they
// stay shared with the store, so later writes to nested paths ("a.b")
// are visible through a previously returned snapshot.
func (d *DataStore) Snapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]any, len(d.root))
	for k, v := range d.root {
		out[k] = v
	}
	return out
}

// Restore replaces the store's contents with data. Used by
// execctx.FromJSON to rehydrate a snapshot.
func (d *DataStore) Restore(data map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if data == nil {
		d.root = make(map[string]any)
		return
	}
	d.root = data
}
