package llm

import "context"

// Request is one call to a generative text service.
type Request struct {
	SystemInstruction string
	UserInstruction   string
	// ExpectJSON asks the service for a JSON document instead of plain text.
	ExpectJSON bool
}

// Completer sends a request to a generative text service and returns the raw response text.
// Callers must treat every call as fallible and keep a template-only fallback.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
