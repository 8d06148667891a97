package search

import (
	"context"
	"sync/atomic"
)

// StubClient serves canned results for tests and keyless local runs.
type StubClient struct {
	// Results are returned on every search unless Err is set.
	Results []Result
	// Err, when set, fails every search.
	Err error

	calls int64
}

// Search returns the canned results
func (c *StubClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.Err != nil {
		return nil, c.Err
	}
	if limit > 0 && limit < len(c.Results) {
		return c.Results[:limit], nil
	}
	return c.Results, nil
}

// Calls returns how many searches were issued.
func (c *StubClient) Calls() int {
	return int(atomic.LoadInt64(&c.calls))
}
