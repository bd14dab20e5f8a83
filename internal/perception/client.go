// Package perception wraps the external text-generation collaborators. The
// pipeline consumes them through one narrow interface: prompt in, text out.
// Everything structured happens after extraction and validation, never here.
package perception

import "context"

// LLMClient is the contract every provider implements.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
