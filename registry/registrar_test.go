package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/execore/execctx"
)

type testItem struct {
	id, name string
}

func (t testItem) ID() string   { return t.id }
func (t testItem) Name() string { return t.name }

func TestBaseRegistry_RegisterGetRemove(t *testing.T) {
	r := NewBaseRegistry[testItem]()
	require.NoError(t, r.Register("a", testItem{id: "a", name: "A"}))
	assert.Error(t, r.Register("a", testItem{id: "a", name: "A2"}), "duplicate registration must fail")

	item, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A", item.name)

	assert.Equal(t, 1, r.Count())
	require.NoError(t, r.Remove("a"))
	assert.Equal(t, 0, r.Count())
	assert.Error(t, r.Remove("a"))
}

func TestRegistrar_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistrar()
	r.Register(testItem{id: "t1", name: "T1"})
	r.Register(testItem{id: "t1", name: "T1-again"})

	item, ok := r.Lookup("t1")
	require.True(t, ok)
	assert.Equal(t, "T1", item.Name(), "second registration of the same id must not overwrite the first")
	assert.Len(t, r.All(), 1)
}

func TestRegistrar_NotifyToolCall(t *testing.T) {
	r := NewRegistrar()
	var mu sync.Mutex
	var got *execctx.Context

	r.OnToolCall(func(c *execctx.Context) {
		mu.Lock()
		defer mu.Unlock()
		got = c
	})

	ctx := execctx.New(nil)
	r.NotifyToolCall(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := got != nil
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Same(t, ctx, got)
}

func TestRegistrar_DisableStopsNotifications(t *testing.T) {
	r := NewRegistrar()
	r.Disable()

	var called bool
	var mu sync.Mutex
	r.OnToolCall(func(c *execctx.Context) {
		mu.Lock()
		defer mu.Unlock()
		called = true
	})

	r.NotifyToolCall(execctx.New(nil))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, called)
}

func TestGlobal_IsSingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
}
