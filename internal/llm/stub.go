package llm

import (
	"context"
	"errors"
	"sync"
)

// StubProvider is a deterministic in-memory Provider used in tests and as a
// fallback when no real provider is configured. Responses are either served
// by CompleteFunc or popped from a scripted queue.
type StubProvider struct {
	// CompleteFunc, when set, handles every completion.
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	mu        sync.Mutex
	scripted  []string
	callCount int
}

// NewStubProvider creates a stub provider with an optional scripted
// response queue.
func NewStubProvider(scripted ...string) *StubProvider {
	return &StubProvider{scripted: scripted}
}

// Name returns the provider name
func (p *StubProvider) Name() string {
	return "stub"
}

// Complete serves the next scripted response, or delegates to CompleteFunc.
func (p *StubProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCount++
	if len(p.scripted) == 0 {
		return nil, errors.New("stub provider has no scripted response")
	}
	next := p.scripted[0]
	p.scripted = p.scripted[1:]
	return &CompletionResponse{Content: next, Model: "stub"}, nil
}

// Calls returns how many completions the stub has served.
func (p *StubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}
