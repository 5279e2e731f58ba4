package agent

import (
	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// DefaultMaxSteps is used when NewIterative is given maxSteps <= 0.
const DefaultMaxSteps = 10

// IterativeAgent loops Agent's prepare_prompt -> llm -> extract_result
// step up to maxSteps times, terminating as soon as extract_result
// yields a non-nil value.
type IterativeAgent struct {
	*tool.BaseTool
	inner        *Agent
	maxSteps     int
	initialState map[string]any
}

// NewIterative builds an IterativeAgent. initialState, if non-nil, is
// copied into ctx's local scope once, before the first step.
func NewIterative(
	name, description string,
	args []schema.Argument,
	llm LLM,
	preparePrompt PreparePromptFunc,
	extractResult ExtractResultFunc,
	maxSteps int,
	initialState map[string]any,
	opts ...tool.Option,
) *IterativeAgent {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	ia := &IterativeAgent{
		inner:        &Agent{llm: llm, preparePrompt: preparePrompt, extractResult: extractResult},
		maxSteps:     maxSteps,
		initialState: initialState,
	}
	ia.BaseTool = tool.New(name, description, args, ia.run, opts...)
	return ia
}

func (ia *IterativeAgent) run(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	for k, v := range ia.initialState {
		ctx.Local().Set(k, v)
	}

	for step := 0; step < ia.maxSteps; step++ {
		ctx.Broadcast(event.New(event.TypeAgentBackendStep, step))

		out, err := ia.inner.step(ctx, kwargs)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}

	return nil, NewMaxStepsExceededError(ia.Name(), ia.maxSteps)
}
