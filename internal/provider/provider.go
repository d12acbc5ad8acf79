// Package provider defines the contract between the webhook and a
// chat-completion backend, along with the error taxonomy backends report.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live in separate packages (e.g.,
// provider.openai_compatible) and typically also implement core.Module.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	// Implementations make exactly one attempt.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
