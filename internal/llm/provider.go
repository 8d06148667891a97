package llm

import (
	"context"
)

// Provider is the narrow interface the core uses for every language-model
// call: detection, translation, extraction, and answer phrasing. The core
// depends only on this contract, never on a concrete vendor client.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete performs a single non-streaming completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest represents a chat completion request
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
	JSONMode    bool      `json:"json_mode,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}
