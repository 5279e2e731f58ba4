package flow

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/registry"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// CompletionStrategy decides when a ParallelList invocation considers
// itself done.
type CompletionStrategy string

const (
	CompletionAll      CompletionStrategy = "all"
	CompletionAny      CompletionStrategy = "any"
	CompletionN        CompletionStrategy = "n"
	CompletionMajority CompletionStrategy = "majority"
)

// ErrorStrategy decides how a ParallelList reacts to a per-item failure.
type ErrorStrategy string

const (
	ErrorIgnore ErrorStrategy = "ignore"
	ErrorFail   ErrorStrategy = "fail"
)

// ArgsTransform rewrites the caller's kwargs before input reshaping.
type ArgsTransform func(kwargs map[string]any) (map[string]any, error)

// ResultFormatter renders the final results slice into the combinator's
// return value. If nil, ParallelList returns a copy of the slice itself.
type ResultFormatter func(ctx *execctx.Context, results []any) any

// ParallelConfig groups ParallelList's construction parameters.
type ParallelConfig struct {
	Name        string
	Description string
	Inner       any // tool.Tool or a raw func (toolified via tool.WrapStepFunc)
	Args        []schema.Argument

	// Rename maps an outer kwarg name to the inner tool's argument name,
	// applied to every reshaped item (typically for depluralization,
	// e.g. "topics" -> "topic").
	Rename map[string]string

	// ArgsTransform, if set, runs once on the outer kwargs before
	// reshaping.
	ArgsTransform ArgsTransform

	// SingleInputArg names a single outer kwarg that carries the whole
	// per-item list directly: either a list of kwargs dicts (shape 1) or
	// a list of positional-value lists zipped against Inner's argument
	// order (shapes 4/5). When unset, the default dict-of-lists/
	// broadcast-scalar reshaping (shapes 2/3) applies to the outer
	// kwargs as a whole.
	SingleInputArg string

	CompletionStrategy CompletionStrategy // default CompletionAll
	CompletionCount    int                // required when CompletionStrategy == CompletionN
	ErrorStrategy      ErrorStrategy       // default ErrorIgnore
	MaxWorkers         int                 // 0 uses the process default (SetDefaultMaxWorkers), itself unbounded unless set

	ResultFormatter ResultFormatter
}

// ParallelList is the fan-out combinator: it runs a single inner tool
// concurrently over a list of per-item kwargs derived from the outer
// call's input, per a completion strategy and an error strategy, and
// supports retrying only the failed subset of items.
type ParallelList struct {
	*tool.BaseTool
	inner              tool.Tool
	rename             map[string]string
	argsTransform      ArgsTransform
	singleInputArg     string
	completionStrategy CompletionStrategy
	completionCount    int
	errorStrategy      ErrorStrategy
	maxWorkers         int
	resultFormatter    ResultFormatter
}

// NewParallelList builds a ParallelList from cfg, validating the
// completion/error strategy names at construction time.
func NewParallelList(cfg ParallelConfig) (*ParallelList, error) {
	var innerTool tool.Tool
	switch v := cfg.Inner.(type) {
	case tool.Tool:
		innerTool = v
	default:
		wrapped, err := tool.WrapStepFunc(cfg.Name+".inner", cfg.Inner)
		if err != nil {
			return nil, err
		}
		innerTool = wrapped
	}

	strategy := cfg.CompletionStrategy
	if strategy == "" {
		strategy = CompletionAll
	}
	switch strategy {
	case CompletionAll, CompletionAny, CompletionN, CompletionMajority:
	default:
		return nil, NewInvalidConfigurationError(cfg.Name, fmt.Sprintf("unknown completion_strategy %q", strategy))
	}
	if strategy == CompletionN && cfg.CompletionCount <= 0 {
		return nil, NewInvalidConfigurationError(cfg.Name, "completion_count is required when completion_strategy is \"n\"")
	}

	errStrategy := cfg.ErrorStrategy
	if errStrategy == "" {
		errStrategy = ErrorIgnore
	}
	switch errStrategy {
	case ErrorIgnore, ErrorFail:
	default:
		return nil, NewInvalidConfigurationError(cfg.Name, fmt.Sprintf("unknown error_strategy %q", errStrategy))
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers == 0 {
		maxWorkers = defaultMaxWorkers()
	}

	p := &ParallelList{
		inner:              innerTool,
		rename:             cfg.Rename,
		argsTransform:      cfg.ArgsTransform,
		singleInputArg:     cfg.SingleInputArg,
		completionStrategy: strategy,
		completionCount:    cfg.CompletionCount,
		errorStrategy:      errStrategy,
		maxWorkers:         maxWorkers,
		resultFormatter:    cfg.ResultFormatter,
	}

	args := cfg.Args
	if args == nil {
		if p.singleInputArg != "" {
			args = []schema.Argument{{Name: p.singleInputArg, Description: "per-item inputs", Type: "list", Required: true}}
		} else {
			args = innerTool.Arguments()
			if len(p.rename) > 0 {
				outerName := make(map[string]string, len(p.rename))
				for outer, inner := range p.rename {
					outerName[inner] = outer
				}
				renamed := make([]schema.Argument, len(args))
				for i, a := range args {
					if o, ok := outerName[a.Name]; ok {
						a.Name = o
					}
					renamed[i] = a
				}
				args = renamed
			}
		}
	}
	p.BaseTool = tool.New(cfg.Name, cfg.Description, args, p.run)
	return p, nil
}

// targetCount computes how many successes the configured completion
// strategy needs out of n items. Majority ties break toward strictly
// more than half for every n, even or odd (spec.md §9's open question,
// resolved per §8 testable property 5).
func (p *ParallelList) targetCount(n int) int {
	var target int
	switch p.completionStrategy {
	case CompletionAny:
		target = 1
	case CompletionN:
		target = p.completionCount
	case CompletionMajority:
		target = n/2 + 1
	default: // CompletionAll
		target = n
	}
	if target > n {
		target = n
	}
	if target < 0 {
		target = 0
	}
	return target
}

// run performs the full fan-out: reshape the outer kwargs into per-item
// kwargs, run every item concurrently, and assemble the results.
func (p *ParallelList) run(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	items, err := p.reshape(kwargs)
	if err != nil {
		return nil, err
	}

	n := len(items)
	itemsSnapshot := make([]any, n)
	for i, it := range items {
		itemsSnapshot[i] = it
	}
	ctx.Local().Set("items", itemsSnapshot)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	target := p.targetCount(n)
	ctx.Local().Set("to_go_count", float64(target))

	results, err := p.runFanout(ctx, indices, items, make([]any, n), target)
	ctx.Local().Set("results", append([]any(nil), results...))
	if err != nil {
		return nil, err
	}

	if p.resultFormatter != nil {
		return p.resultFormatter(ctx, results), nil
	}
	return append([]any(nil), results...), nil
}

// runFanout runs one fan-out round over items (whose original positions
// are given by indices), starting from base (a full-length results slice
// carrying any already-known outcomes), and returns a snapshot of the
// results taken as soon as needed successes have been observed.
//
// Items still queued behind a MaxWorkers semaphore when that threshold
// is reached are cancelled outright (their slot stays nil, a genuine
// "not yet started" cancellation). Items already in flight are not
// preemptible through the Tool contract and keep running to completion
// in the background — consistent with §5's "the background task
// continues unless explicitly cancelled" — but since the snapshot
// returned to the caller is copied at the moment the threshold fires,
// their eventual outcome never reaches the caller for this round.
func (p *ParallelList) runFanout(ctx *execctx.Context, indices []int, items []map[string]any, base []any, needed int) ([]any, error) {
	if len(items) == 0 {
		return base, nil
	}
	if needed <= 0 || needed > len(items) {
		needed = len(items)
	}

	results := append([]any(nil), base...)

	roundCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sem *semaphore.Weighted
	if p.maxWorkers > 0 {
		sem = semaphore.NewWeighted(int64(p.maxWorkers))
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
		firstErr  error
	)
	reached := make(chan struct{})
	var reachedOnce sync.Once
	allDone := make(chan struct{})
	metrics := registry.Global().Metrics()

	for i := range items {
		i := i
		idx := indices[i]
		kw := items[i]

		wg.Add(1)
		go func() {
			defer wg.Done()

			if sem != nil {
				if err := sem.Acquire(roundCtx, 1); err != nil {
					return // cancelled before this item started
				}
				defer sem.Release(1)
			}

			select {
			case <-roundCtx.Done():
				return
			default:
			}

			child := ctx.ChildContext(p.inner)
			out, callErr := p.inner.Call(child, kw)
			metrics.ParallelListItems.Inc()

			mu.Lock()
			defer mu.Unlock()

			if callErr != nil {
				results[idx] = callErr
				if p.errorStrategy == ErrorFail {
					if firstErr == nil {
						firstErr = callErr
					}
					reachedOnce.Do(func() { close(reached) })
				}
				return
			}

			results[idx] = out
			completed++
			if completed >= needed {
				reachedOnce.Do(func() { close(reached) })
			}
		}()
	}

	go func() {
		wg.Wait()
		close(allDone)
	}()

	var snapshot []any
	select {
	case <-reached:
		mu.Lock()
		snapshot = append([]any(nil), results...)
		mu.Unlock()
	case <-allDone:
		mu.Lock()
		snapshot = append([]any(nil), results...)
		mu.Unlock()
	}
	cancel()

	if p.errorStrategy == ErrorFail {
		mu.Lock()
		err := firstErr
		mu.Unlock()
		if err != nil {
			return snapshot, err
		}
	}
	return snapshot, nil
}

// Retry re-runs only the failed subset of the prior invocation: indices
// whose results slot is nil or holds an error. Already-succeeded slots
// are untouched; the completion target is decremented by the number of
// slots that already succeeded.
func (p *ParallelList) Retry(ctx *execctx.Context) (any, error) {
	itemsRaw, _ := ctx.Local().Get("items", nil).([]any)
	items := make([]map[string]any, len(itemsRaw))
	for i, v := range itemsRaw {
		items[i], _ = v.(map[string]any)
	}

	resultsRaw, _ := ctx.Local().Get("results", nil).([]any)
	base := append([]any(nil), resultsRaw...)
	if len(base) != len(items) {
		base = make([]any, len(items))
	}

	var failedIdx []int
	successCount := 0
	for i, r := range base {
		if isFailedResult(r) {
			failedIdx = append(failedIdx, i)
		} else {
			successCount++
		}
	}

	retryItems := make([]map[string]any, len(failedIdx))
	for i, idx := range failedIdx {
		retryItems[i] = items[idx]
	}

	n := len(items)
	totalTarget := p.targetCount(n)
	needed := totalTarget - successCount
	if needed < 0 {
		needed = 0
	}

	ctx.Clear(true, true)
	ctx.Local().Set("to_go_count", float64(needed))

	results, runErr := p.runFanout(ctx, failedIdx, retryItems, base, needed)
	ctx.Local().Set("results", append([]any(nil), results...))

	if runErr != nil {
		_ = ctx.SetException(runErr)
		return nil, runErr
	}

	var out any
	if p.resultFormatter != nil {
		out = p.resultFormatter(ctx, results)
	} else {
		out = append([]any(nil), results...)
	}

	if err := ctx.SetOutput(out); err != nil {
		return nil, err
	}
	ctx.Broadcast(event.New(event.TypeToolReturn, out))
	return out, nil
}

// isFailedResult reports whether a results slot represents an
// unfilled/cancelled item (nil) or a recorded per-item failure (error).
func isFailedResult(v any) bool {
	if v == nil {
		return true
	}
	_, isErr := v.(error)
	return isErr
}

// reshape normalizes the outer call's kwargs into an ordered list of
// per-item kwargs, covering the five input shapes spec.md §4.10
// describes via three concrete forms: a dedicated single-input argument
// carrying either a list of dicts or a list of positional-value lists,
// or (the default) a dict whose list-valued keys are zipped by position
// and scalar-valued keys are broadcast to every item.
func (p *ParallelList) reshape(kwargs map[string]any) ([]map[string]any, error) {
	if p.argsTransform != nil {
		transformed, err := p.argsTransform(kwargs)
		if err != nil {
			return nil, err
		}
		kwargs = transformed
	}

	var items []map[string]any
	var err error
	if p.singleInputArg != "" {
		items, err = p.reshapeSingleInput(kwargs)
	} else {
		items, err = p.reshapeDictOfLists(kwargs)
	}
	if err != nil {
		return nil, err
	}

	if len(p.rename) == 0 {
		return items, nil
	}
	renamed := make([]map[string]any, len(items))
	for i, it := range items {
		renamed[i] = p.applyRename(it)
	}
	return renamed, nil
}

func (p *ParallelList) applyRename(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if inner, ok := p.rename[k]; ok {
			out[inner] = v
			continue
		}
		out[k] = v
	}
	return out
}

// reshapeSingleInput handles a dedicated single-input argument: the
// caller passes one list under p.singleInputArg, either of kwargs dicts
// (shape 1) or of positional-value lists zipped against the inner
// tool's declared argument order (shapes 4/5).
func (p *ParallelList) reshapeSingleInput(kwargs map[string]any) ([]map[string]any, error) {
	raw, ok := kwargs[p.singleInputArg]
	if !ok {
		return nil, fmt.Errorf("flow: ParallelList: missing single-input argument %q", p.singleInputArg)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("flow: ParallelList: argument %q must be a list", p.singleInputArg)
	}
	if len(list) == 0 {
		return nil, nil
	}

	switch list[0].(type) {
	case map[string]any:
		items := make([]map[string]any, len(list))
		for i, v := range list {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("flow: ParallelList: item %d of %q is not a kwargs dict", i, p.singleInputArg)
			}
			items[i] = m
		}
		return items, nil
	case []any:
		names := innerArgumentNames(p.inner)
		items := make([]map[string]any, len(list))
		for i, v := range list {
			positional, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("flow: ParallelList: item %d of %q is not a positional list", i, p.singleInputArg)
			}
			if len(positional) > len(names) {
				return nil, fmt.Errorf("flow: ParallelList: item %d of %q has %d values but inner tool declares %d arguments", i, p.singleInputArg, len(positional), len(names))
			}
			item := make(map[string]any, len(positional))
			for j, val := range positional {
				item[names[j]] = val
			}
			items[i] = item
		}
		return items, nil
	default:
		return nil, fmt.Errorf("flow: ParallelList: unsupported item shape for argument %q", p.singleInputArg)
	}
}

// reshapeDictOfLists is the default reshaping: every list-valued kwarg
// is zipped by position; every other kwarg is broadcast unchanged to
// every item. All list-valued kwargs must share the same length. If no
// kwarg is list-valued, the whole call is treated as a single item.
func (p *ParallelList) reshapeDictOfLists(kwargs map[string]any) ([]map[string]any, error) {
	n := -1
	for k, v := range kwargs {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		if n == -1 {
			n = len(list)
		} else if len(list) != n {
			return nil, fmt.Errorf("flow: ParallelList: argument %q has length %d, expected %d", k, len(list), n)
		}
	}

	if n == -1 {
		item := make(map[string]any, len(kwargs))
		for k, v := range kwargs {
			item[k] = v
		}
		return []map[string]any{item}, nil
	}

	items := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		items[i] = make(map[string]any, len(kwargs))
	}
	for k, v := range kwargs {
		if list, ok := v.([]any); ok {
			for i := 0; i < n; i++ {
				items[i][k] = list[i]
			}
			continue
		}
		for i := 0; i < n; i++ {
			items[i][k] = v
		}
	}
	return items, nil
}

// innerArgumentNames returns the inner tool's declared argument names in
// schema order, used to map positional-list items onto named kwargs.
func innerArgumentNames(t tool.Tool) []string {
	args := t.Arguments()
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name
	}
	return names
}
