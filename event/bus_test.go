package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource string

func (f fakeSource) ID() string { return string(f) }

func awaitCount(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, get())
}

func TestBus_LocalBroadcastRecordsHistory(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	root := fakeSource("root")
	bus := NewBus(root, pool)

	bus.Broadcast(New(TypeToolCalled, nil), root)
	awaitCount(t, func() int { return len(bus.History()) }, 1)
	assert.Equal(t, TypeToolCalled, bus.History()[0].Type)
}

func TestBus_PropagatedEventDoesNotAppendToParentHistory(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	root := fakeSource("root")
	child := fakeSource("child")
	rootBus := NewBus(root, pool)
	childBus := NewBus(child, pool)
	childBus.PropagateTo(rootBus)

	childBus.Broadcast(New(TypeToolReturn, nil), child)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rootBus.History(), "root history only grows from its own local broadcasts")
	assert.Len(t, childBus.History(), 1)
}

func TestBus_PropagatingListenerSeesDescendantEvents(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	root := fakeSource("root")
	child := fakeSource("child")
	rootBus := NewBus(root, pool)
	childBus := NewBus(child, pool)
	childBus.PropagateTo(rootBus)

	var mu sync.Mutex
	var seen []Source
	rootBus.OnAny(func(source Source, e Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, source)
	})

	childBus.Broadcast(New(TypeToolCalled, nil), child)

	awaitCount(t, func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, child, seen[0])
}

func TestBus_FilteredListenerIgnoresDescendants(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	root := fakeSource("root")
	child := fakeSource("child")
	rootBus := NewBus(root, pool)
	childBus := NewBus(child, pool)
	childBus.PropagateTo(rootBus)

	var count int
	var mu sync.Mutex
	rootBus.OnFilteredAny(func(source Source, e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	childBus.Broadcast(New(TypeToolCalled, nil), child)
	rootBus.Broadcast(New(TypeToolCalled, nil), root)

	awaitCount(t, func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}, 1)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "filtered listener must only see the root's own event")
}

func TestPool_ListenerPanicIsolated(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	root := fakeSource("root")
	bus := NewBus(root, pool)

	var ran bool
	var mu sync.Mutex
	bus.OnAny(func(source Source, e Event) {
		panic("listener exploded")
	})
	bus.OnAny(func(source Source, e Event) {
		mu.Lock()
		defer mu.Unlock()
		ran = true
	})

	bus.Broadcast(New(TypeToolCalled, nil), root)

	awaitCount(t, func() int {
		mu.Lock()
		defer mu.Unlock()
		if ran {
			return 1
		}
		return 0
	}, 1)
}
