package flow

import (
	"fmt"

	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// Linear is the sequential-pipeline combinator: each step's output
// becomes the next step's input, with a resumable step index that lets
// Retry re-enter at the failed step instead of restarting the pipeline.
type Linear struct {
	*tool.BaseTool
	steps []tool.Tool
}

// New builds a Linear pipeline. Each element of steps is either a
// tool.Tool or a raw function matching tool.WrapStepFunc's accepted
// shapes; raw functions are toolified transparently. If args is nil, the
// pipeline's own argument schema is inferred from the first step.
func New(name, description string, steps []any, args []schema.Argument) (*Linear, error) {
	if len(steps) == 0 {
		return nil, NewInvalidConfigurationError(name, "Linear requires at least one step")
	}

	toolSteps := make([]tool.Tool, len(steps))
	for i, s := range steps {
		switch v := s.(type) {
		case tool.Tool:
			toolSteps[i] = v
		default:
			wrapped, err := tool.WrapStepFunc(fmt.Sprintf("%s.step%d", name, i), s)
			if err != nil {
				return nil, fmt.Errorf("flow: Linear(%s): step %d: %w", name, i, err)
			}
			toolSteps[i] = wrapped
		}
	}

	if args == nil {
		args = toolSteps[0].Arguments()
	}

	l := &Linear{steps: toolSteps}
	l.BaseTool = tool.New(name, description, args, l.run)
	return l, nil
}

// asStepKwargs reshapes a prior step's output into the next step's
// kwargs: a map[string]any passes through untouched; any other value is
// wrapped under the single "input" key, the same convention
// tool.WrapStepFunc uses for raw functions.
func asStepKwargs(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"input": v}
}

func (l *Linear) run(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	ctx.X().Init("init_input", kwargs)

	argsByStep, _ := ctx.Local().Get("args_by_step", nil).(map[int]any)
	if argsByStep == nil {
		argsByStep = make(map[int]any)
		ctx.Local().Set("args_by_step", argsByStep)
	}

	start := 0
	if v, ok := ctx.Local().Get("step", nil).(int); ok {
		start = v
	}

	var current any = kwargs
	if prior, ok := argsByStep[start]; ok {
		current = prior
	}

	for i := start; i < len(l.steps); i++ {
		ctx.Local().Set("step", i)
		stepKwargs := asStepKwargs(current)
		argsByStep[i] = stepKwargs

		out, err := l.steps[i].Call(ctx, stepKwargs)
		if err != nil {
			return nil, NewStepException(l.Name(), i, err)
		}
		current = out
	}

	return current, nil
}

// Retry re-enters execution at the step index recorded in ctx["step"],
// reusing ctx["args_by_step"][step] as that step's input. args_by_step
// and the execution scope are preserved across the clear.
func (l *Linear) Retry(ctx *execctx.Context) (any, error) {
	ctx.Clear(true, true)

	out, err := l.run(ctx, ctx.Args())
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
