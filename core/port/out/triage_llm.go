package out

import "context"

// TextCompleter is the opaque text-in/text-out LLM contract. The core
// parses the returned text itself; a parse failure is a classification
// failure, not a transport error.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
