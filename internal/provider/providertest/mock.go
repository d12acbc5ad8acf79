// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/danielfernandez00/mi-webhook/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set CompleteFunc to control behavior; an unset func panics on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	Model        string

	mu       sync.Mutex
	requests []provider.CompletionRequest
}

// Complete records the request and delegates to CompleteFunc.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ModelName returns Model, or "mock" when unset.
func (m *MockProvider) ModelName() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request passed to Complete.
func (m *MockProvider) Requests() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reply returns a MockProvider that always answers with content.
func Reply(content string) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: content, FinishReason: provider.FinishReasonStop}, nil
		},
	}
}

// Fail returns a MockProvider that always fails with err.
func Fail(err error) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, err
		},
	}
}

var _ provider.Provider = (*MockProvider)(nil)
