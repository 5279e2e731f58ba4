package flow

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// sleeperTool returns its "d" argument after sleeping for d milliseconds,
// so that slower items finish after faster ones started concurrently.
func sleeperTool(name string) *tool.BaseTool {
	return tool.New(name, "sleeps d milliseconds then returns d",
		[]schema.Argument{{Name: "d", Type: "float", Required: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			d, _ := kwargs["d"].(float64)
			time.Sleep(time.Duration(d) * time.Millisecond)
			return d, nil
		})
}

func TestParallelList_AllStrategyPreservesOrder(t *testing.T) {
	p, err := NewParallelList(ParallelConfig{
		Name:  "all-strategy",
		Inner: sleeperTool("all-strategy.inner"),
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{"d": []any{20.0, 5.0}})
	require.NoError(t, err)
	assert.Equal(t, []any{20.0, 5.0}, out)
}

func TestParallelList_NStrategyStopsAtCount(t *testing.T) {
	p, err := NewParallelList(ParallelConfig{
		Name:               "n-strategy",
		Inner:              sleeperTool("n-strategy.inner"),
		CompletionStrategy: CompletionN,
		CompletionCount:    2,
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{"d": []any{1.0, 2.0, 3.0, 4.0}})
	require.NoError(t, err)

	results, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, results, 4)

	nonNil := 0
	for _, r := range results {
		if r != nil {
			nonNil++
		}
	}
	assert.Equal(t, 2, nonNil)
}

func TestParallelList_MajorityTieBreakStrictlyOverHalf(t *testing.T) {
	p, err := NewParallelList(ParallelConfig{
		Name:               "majority",
		Inner:              sleeperTool("majority.inner"),
		CompletionStrategy: CompletionMajority,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, p.targetCount(4)) // even N: strictly more than half
	assert.Equal(t, 3, p.targetCount(5)) // odd N
}

func TestParallelList_PartialRetryReplacesOnlyFailedIndices(t *testing.T) {
	var mu sync.Mutex
	attempts := map[float64]int{}

	flaky := tool.New("flaky", "fails once on even values",
		[]schema.Argument{{Name: "d", Type: "float", Required: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			d, _ := kwargs["d"].(float64)

			mu.Lock()
			attempts[d]++
			n := attempts[d]
			mu.Unlock()

			even := int(d)%2 == 0
			if even && n == 1 {
				return nil, fmt.Errorf("transient failure on %v", d)
			}
			return d, nil
		})

	p, err := NewParallelList(ParallelConfig{
		Name:          "flaky-list",
		Inner:         flaky,
		ErrorStrategy: ErrorIgnore,
	})
	require.NoError(t, err)

	ctx := execctx.New(nil)
	out, err := p.Call(ctx, map[string]any{"d": []any{2.0, 3.0, 4.0}})
	require.NoError(t, err)

	first, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, first, 3)
	_, firstIsErr := first[0].(error)
	_, thirdIsErr := first[2].(error)
	assert.True(t, firstIsErr)
	assert.Equal(t, 3.0, first[1])
	assert.True(t, thirdIsErr)

	retried, err := p.Retry(ctx)
	require.NoError(t, err)

	final, ok := retried.([]any)
	require.True(t, ok)
	require.Len(t, final, 3)
	assert.Equal(t, 2.0, final[0])
	assert.Equal(t, 3.0, final[1])
	assert.Equal(t, 4.0, final[2])

	totalCalls := 0
	mu.Lock()
	for _, n := range attempts {
		totalCalls += n
	}
	mu.Unlock()
	assert.Equal(t, 5, totalCalls, "2 and 4 fail once then succeed once, 3 succeeds once: 5 calls total")
}

func TestParallelList_ErrorStrategyFailReturnsError(t *testing.T) {
	boom := tool.New("boom", "always fails",
		[]schema.Argument{{Name: "d", Type: "float", Required: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			d, _ := kwargs["d"].(float64)
			if d == 1.0 {
				return nil, fmt.Errorf("boom")
			}
			time.Sleep(50 * time.Millisecond)
			return d, nil
		})

	p, err := NewParallelList(ParallelConfig{
		Name:          "fail-fast",
		Inner:         boom,
		ErrorStrategy: ErrorFail,
	})
	require.NoError(t, err)

	_, err = p.Call(execctx.New(nil), map[string]any{"d": []any{1.0, 2.0, 3.0}})
	require.Error(t, err)
}

func TestParallelList_SingleInputArgListOfDicts(t *testing.T) {
	echo := tool.New("echo", "echoes a and b",
		[]schema.Argument{
			{Name: "a", Type: "int", Required: true},
			{Name: "b", Type: "int", Required: true},
		},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			return []any{kwargs["a"], kwargs["b"]}, nil
		})

	p, err := NewParallelList(ParallelConfig{
		Name:           "list-of-dicts",
		Inner:          echo,
		SingleInputArg: "items",
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{
		"items": []any{
			map[string]any{"a": 1, "b": 2},
			map[string]any{"a": 3, "b": 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{1, 2}, []any{3, 4}}, out)
}

func TestParallelList_SingleInputArgListOfLists(t *testing.T) {
	echo := tool.New("echo2", "echoes a and b",
		[]schema.Argument{
			{Name: "a", Type: "int", Required: true},
			{Name: "b", Type: "int", Required: true},
		},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			return []any{kwargs["a"], kwargs["b"]}, nil
		})

	p, err := NewParallelList(ParallelConfig{
		Name:           "list-of-lists",
		Inner:          echo,
		SingleInputArg: "items",
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{
		"items": []any{
			[]any{1, 2},
			[]any{3, 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{1, 2}, []any{3, 4}}, out)
}

func TestParallelList_RenameMapsOuterToInnerName(t *testing.T) {
	upper := tool.New("upper", "uppercases topic",
		[]schema.Argument{{Name: "topic", Type: "str", Required: true}},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			return kwargs["topic"], nil
		})

	p, err := NewParallelList(ParallelConfig{
		Name:   "renamed",
		Inner:  upper,
		Rename: map[string]string{"topics": "topic"},
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{"topics": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestParallelList_ScalarBroadcastToEveryItem(t *testing.T) {
	greet := tool.New("greet", "greets name with greeting",
		[]schema.Argument{
			{Name: "name", Type: "str", Required: true},
			{Name: "greeting", Type: "str", Required: true},
		},
		func(ctx *execctx.Context, kwargs map[string]any) (any, error) {
			return fmt.Sprintf("%s, %s", kwargs["greeting"], kwargs["name"]), nil
		})

	p, err := NewParallelList(ParallelConfig{Name: "greetings", Inner: greet})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{
		"name":     []any{"Ada", "Grace"},
		"greeting": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello, Ada", "hello, Grace"}, out)
}

func TestParallelList_ConstructorValidatesStrategies(t *testing.T) {
	_, err := NewParallelList(ParallelConfig{
		Name:               "bad-strategy",
		Inner:              sleeperTool("bad-strategy.inner"),
		CompletionStrategy: "sometimes",
	})
	require.Error(t, err)

	_, err = NewParallelList(ParallelConfig{
		Name:               "missing-count",
		Inner:              sleeperTool("missing-count.inner"),
		CompletionStrategy: CompletionN,
	})
	require.Error(t, err)

	_, err = NewParallelList(ParallelConfig{
		Name:          "bad-error-strategy",
		Inner:         sleeperTool("bad-error-strategy.inner"),
		ErrorStrategy: "retry-forever",
	})
	require.Error(t, err)
}

func TestParallelList_ResultFormatter(t *testing.T) {
	p, err := NewParallelList(ParallelConfig{
		Name:  "formatted",
		Inner: sleeperTool("formatted.inner"),
		ResultFormatter: func(ctx *execctx.Context, results []any) any {
			return map[string]any{"count": len(results)}
		},
	})
	require.NoError(t, err)

	out, err := p.Call(execctx.New(nil), map[string]any{"d": []any{1.0, 2.0, 3.0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 3}, out)
}
