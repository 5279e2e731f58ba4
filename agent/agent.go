package agent

import (
	"github.com/kadirpekel/execore/event"
	"github.com/kadirpekel/execore/execctx"
	"github.com/kadirpekel/execore/registry"
	"github.com/kadirpekel/execore/schema"
	"github.com/kadirpekel/execore/tool"
)

// PreparePromptFunc builds the prompt sent to the LLM from the
// invocation's context and kwargs.
type PreparePromptFunc func(ctx *execctx.Context, kwargs map[string]any) (string, error)

// ExtractResultFunc turns the LLM's raw response into the agent's output.
// A nil (any, nil) return lets IterativeAgent continue looping.
type ExtractResultFunc func(ctx *execctx.Context, response string) (any, error)

// Agent is a Tool whose body is fixed to prepare_prompt -> llm.Complete
// -> extract_result.
type Agent struct {
	*tool.BaseTool
	llm           LLM
	preparePrompt PreparePromptFunc
	extractResult ExtractResultFunc
}

// New builds a single-shot Agent and registers it with the global
// Registrar (via the embedded BaseTool's constructor).
func New(
	name, description string,
	args []schema.Argument,
	llm LLM,
	preparePrompt PreparePromptFunc,
	extractResult ExtractResultFunc,
	opts ...tool.Option,
) *Agent {
	a := &Agent{llm: llm, preparePrompt: preparePrompt, extractResult: extractResult}
	a.BaseTool = tool.New(name, description, args, a.step, opts...)
	return a
}

// step runs exactly one prepare_prompt -> llm -> extract_result round and
// is reused, unmodified, by IterativeAgent's loop.
func (a *Agent) step(ctx *execctx.Context, kwargs map[string]any) (any, error) {
	prompt, err := a.preparePrompt(ctx, kwargs)
	if err != nil {
		return nil, err
	}
	ctx.Broadcast(event.New(event.TypeAgentPrompt, prompt))
	ctx.Broadcast(event.New(event.TypeLLMCalled, prompt))
	registry.Global().NotifyLLMCall(ctx)

	response, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	ctx.Broadcast(event.New(event.TypeLLMResponse, response))
	ctx.Broadcast(event.New(event.TypeAgentLLMResponse, response))

	return a.extractResult(ctx, response)
}
