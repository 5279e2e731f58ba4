// Package agent implements Agent and IterativeAgent: Tool subtypes whose
// invoke body is fixed to prepare_prompt -> llm.Complete -> extract_result.
package agent

import (
	"github.com/kadirpekel/execore/execctx"
)

// LLM is the narrow collaborator this package consumes. No concrete
// provider ships with this module — domain code supplies one (an HTTP
// client against Anthropic, OpenAI, Ollama, or similar, in the style of
// the teacher's llms package).
type LLM interface {
	// Complete returns the model's completion for prompt.
	Complete(ctx *execctx.Context, prompt string) (string, error)
	// ContextLength reports the model's context window, in tokens.
	ContextLength() int
	// EstimateTokens estimates how many tokens s will consume. Callers may
	// rely on DefaultEstimateTokens as a baseline and override only when a
	// provider exposes a real tokenizer.
	EstimateTokens(s string) int
}

// DefaultEstimateTokens is the baseline four-characters-per-token
// heuristic LLM implementations may embed when no real tokenizer is
// available.
func DefaultEstimateTokens(s string) int {
	return len(s) / 4
}
