// Package llm provides the client abstraction over the external LLM
// provider, plus resilience (retry, rate limiting, timeouts) and
// structured-output extraction for model responses.
package llm

import "context"

// Request is one role-tagged completion request.
type Request struct {
	// System is the system instruction (persona, output contract).
	System string
	// Prompt is the user-role content.
	Prompt string
}

// Client generates text from an LLM. Implementations must be safe for
// concurrent use; every call is a fallible network operation.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
