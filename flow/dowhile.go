package flow

import (
	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/registry"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// DefaultMaxIterations bounds a DoWhile that doesn't set MaxIterations.
const DefaultMaxIterations = 10

// StopCondition decides whether a DoWhile loop should terminate after
// observing lastOutput.
type StopCondition func(ctx *execctx.Context, lastOutput any) bool

// PrepareArgs derives the next iteration's kwargs from the original call
// kwargs; it is invoked once per iteration.
type PrepareArgs func(ctx *execctx.Context, original map[string]any) map[string]any

// FormatOutput, if set, transforms the final iteration's output into the
// DoWhile's return value.
type FormatOutput func(ctx *execctx.Context, lastOutput any) any

// InitialState, if set, is copied into ctx's local scope exactly once,
// before the first iteration.
type InitialState func(ctx *execctx.Context, kwargs map[string]any) map[string]any

// DoWhile repeatedly calls an inner tool until StopCondition reports
// true or MaxIterations is reached.
type DoWhile struct {
	*tool.BaseTool
	inner         tool.Tool
	stopCondition StopCondition
	prepareArgs   PrepareArgs
	formatOutput  FormatOutput
	initialState  InitialState
	maxIterations int
}

// Config groups DoWhile's construction parameters.
type Config struct {
	Name          string
	Description   string
	Inner         any // tool.Tool or a raw func (toolified via tool.WrapStepFunc)
	StopCondition StopCondition
	PrepareArgs   PrepareArgs
	FormatOutput  FormatOutput
	InitialState  InitialState
	MaxIterations int
	Args          []schema.Argument
}

// NewDoWhile builds a DoWhile combinator from cfg.
func NewDoWhile(cfg Config) (*DoWhile, error) {
	if cfg.StopCondition == nil {
		return nil, NewInvalidConfigurationError(cfg.Name, "stop_condition is required")
	}
	if cfg.PrepareArgs == nil {
		cfg.PrepareArgs = func(ctx *execctx.Context, original map[string]any) map[string]any { return original }
	}

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

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations()
	}

	d := &DoWhile{
		inner:         innerTool,
		stopCondition: cfg.StopCondition,
		prepareArgs:   cfg.PrepareArgs,
		formatOutput:  cfg.FormatOutput,
		initialState:  cfg.InitialState,
		maxIterations: maxIter,
	}

	args := cfg.Args
	if args == nil {
		args = innerTool.Arguments()
	}
	d.BaseTool = tool.New(cfg.Name, cfg.Description, args, d.run)
	return d, nil
}

// run implements the loop. A "pending_args" key in the local scope marks
// an iteration that was in flight when a prior attempt failed: resuming
// (via Retry) reuses that same nextArgs instead of recomputing it and
// without advancing the iteration counter, so a failed-then-retried
// iteration counts once, not twice.
func (d *DoWhile) run(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	firstEntry := !ctx.Local().Contains("iteration")
	if firstEntry && d.initialState != nil {
		for k, v := range d.initialState(ctx, kwargs) {
			ctx.Local().Set(k, v)
		}
	}

	ctx.Local().Init("iteration", float64(0))
	ctx.Local().Init("outputs", []any{})
	ctx.Local().Init("args", []any{})

	resuming := ctx.Local().Contains("pending_args")

	var last any
	for {
		var nextArgs map[string]any
		if resuming {
			nextArgs, _ = ctx.Local().Get("pending_args", nil).(map[string]any)
			resuming = false
		} else {
			iteration := ctx.Local().Increment("iteration", 1)
			registry.Global().Metrics().DoWhileIterations.Inc()
			if int(iteration) > d.maxIterations {
				return nil, NewMaxIterationsExceededError(d.Name(), d.maxIterations)
			}
			nextArgs = d.prepareArgs(ctx, kwargs)
			ctx.Local().Set("pending_args", nextArgs)
			ctx.Local().Append("args", nextArgs)
		}

		out, err := d.inner.Call(ctx, nextArgs)
		if err != nil {
			return nil, err
		}
		ctx.Local().Delete("pending_args")
		ctx.Local().Append("outputs", out)
		last = out

		if d.stopCondition(ctx, out) {
			break
		}
	}

	if d.formatOutput != nil {
		return d.formatOutput(ctx, last), nil
	}
	return last, nil
}

// Retry resumes the loop at the current iteration, re-invoking the inner
// tool with the same in-flight args.
func (d *DoWhile) Retry(ctx *execctx.Context) (any, error) {
	ctx.Clear(true, true)

	out, err := d.run(ctx, ctx.Args())
	if err != nil {
		_ = ctx.SetException(err)
		return nil, err
	}
	if err := ctx.SetOutput(out); err != nil {
		return nil, err
	}
	ctx.Broadcast(event.New(event.TypeToolReturn, out))
	return out, nil
}
