package tool

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/schema"
)

func counterTool() *BaseTool {
	return New(
		fmt.Sprintf("counter-%d", time.Now().UnixNano()),
		"increments the execution-scoped counter by inc and returns the new value",
		[]schema.Argument{{Name: "inc", Type: "int", Required: false, Default: 1, HasDefault: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			inc, _ := kwargs["inc"].(int)
			return ctx.X().Increment("n", float64(inc)), nil
		},
	)
}

func TestBaseTool_CounterScenario(t *testing.T) {
	counter := counterTool()
	ctx := execctx.New(nil)

	first, err := counter.Call(ctx, map[string]any{"inc": 5})
	require.NoError(t, err)
	assert.Equal(t, float64(5), first)

	// ctx is already executing, so the second call derives a child
	// context; the execution scope lives on the root and accumulates
	// across the whole tree.
	second, err := counter.Call(ctx, map[string]any{"inc": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(8), second)
	assert.Equal(t, float64(8), ctx.X().Get("n", nil))
}

func TestBaseTool_MissingRequiredFailsBeforeInvoke(t *testing.T) {
	var invoked atomic.Bool
	tl := New("needs-x", "requires x", []schema.Argument{{Name: "x", Type: "int", Required: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			invoked.Store(true)
			return nil, nil
		},
	)

	_, err := tl.Call(execctx.New(nil), map[string]any{})
	require.Error(t, err)
	assert.False(t, invoked.Load())

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindInvalidArgument, terr.Kind)
	assert.Contains(t, terr.Missing, "x")
}

func TestBaseTool_ExtraneousArgument(t *testing.T) {
	tl := New("noop", "does nothing", nil,
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) { return nil, nil },
	)
	_, err := tl.Call(execctx.New(nil), map[string]any{"unexpected": true})
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Extra, "unexpected")
}

func TestBaseTool_DefaultFilling(t *testing.T) {
	var seen map[string]any
	tl := New("defaults", "", []schema.Argument{
		{Name: "units", Type: "str", HasDefault: true, Default: "celsius"},
	}, func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		seen = kwargs
		return nil, nil
	})
	_, err := tl.Call(execctx.New(nil), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "celsius", seen["units"])
}

func TestBaseTool_ExceptionPropagatesAndRecordsOnContext(t *testing.T) {
	boom := New("boom", "", nil, func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		return nil, assert.AnError
	})
	ctx := execctx.New(nil)
	_, err := boom.Call(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, execctx.StatusError, ctx.Status())
}

func TestBaseTool_AsyncCallAndFuture(t *testing.T) {
	slow := New("slow", "", nil, func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return "done", nil
	})
	ctx := slow.AsyncCall(nil, nil)
	out, err := ctx.Future().Get(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestBaseTool_RetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls int
	flaky := New("flaky", "", nil, func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return "ok", nil
	})

	ctx := execctx.New(nil)
	_, err := flaky.Call(ctx, nil)
	require.Error(t, err)

	out, err := flaky.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, calls)
}

type greetArgs struct {
	Name string `json:"name" jsonschema:"required,description=who to greet"`
}

func TestToolify_DecodesTypedArgs(t *testing.T) {
	greet, err := Toolify("greet", "greets someone", func(ctx *execctx.Context, a greetArgs) (any, error) {
		return "hello " + a.Name, nil
	})
	require.NoError(t, err)

	out, err := greet.Call(execctx.New(nil), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", out)
}

func TestWrapStepFunc_WithoutContext(t *testing.T) {
	double, err := WrapStepFunc("double", func(x int) (int, error) { return x * 2, nil })
	require.NoError(t, err)

	out, err := double.Call(execctx.New(nil), map[string]any{"input": 5})
	require.NoError(t, err)
	assert.Equal(t, 10, out)
}

func TestWrapStepFunc_WithContext(t *testing.T) {
	addTen, err := WrapStepFunc("add_ten", func(ctx *execctx.Context, x int) (int, error) {
		return x + 10, nil
	})
	require.NoError(t, err)

	out, err := addTen.Call(execctx.New(nil), map[string]any{"input": 10})
	require.NoError(t, err)
	assert.Equal(t, 20, out)
}
