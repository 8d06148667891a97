package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.exa.ai"

// HTTPClient talks to an Exa-style neural search API.
type HTTPClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

// NewHTTPClient creates a new search client
func NewHTTPClient(apiKey, baseURL string, timeout time.Duration, log *logrus.Logger) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, errors.New("search API key is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

type searchRequest struct {
	Query      string          `json:"query"`
	NumResults int             `json:"numResults"`
	Type       string          `json:"type"`
	Contents   searchContents  `json:"contents"`
}

type searchContents struct {
	Text    searchText `json:"text"`
	Summary bool       `json:"summary"`
}

type searchText struct {
	MaxCharacters   int  `json:"maxCharacters"`
	IncludeHTMLTags bool `json:"includeHtmlTags"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Summary string `json:"summary"`
		Text    string `json:"text"`
	} `json:"results"`
}

// Search issues one search request. Data-rich pages beat generic blogs for
// schedules and fares, so transport queries get hinted toward price tables.
func (c *HTTPClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 3
	}

	lower := strings.ToLower(query)
	if (strings.Contains(lower, "flight") || strings.Contains(lower, "train")) &&
		!strings.Contains(lower, "price") {
		query += " price schedule ticket table"
	}

	body, err := json.Marshal(searchRequest{
		Query:      query,
		NumResults: limit,
		Type:       "auto",
		Contents: searchContents{
			Text:    searchText{MaxCharacters: 5000},
			Summary: true,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		content := r.Text
		if len(content) > 2000 {
			content = content[:2000]
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Summary: r.Summary,
			Content: strings.TrimSpace(content),
		})
	}

	c.log.WithFields(logrus.Fields{"query": query, "results": len(results)}).Debug("search completed")
	return results, nil
}
