package search

import (
	"context"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`
}

// Client is the external web-search capability the agents query. Exactly one
// request per call, bounded by the caller's context deadline.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
