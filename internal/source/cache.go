package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"attbot/internal/candidate"
)

// Cache is the client for the private cache of previously resolved answers.
// Entries may already carry a byte length, in which case the length is
// authoritative and the probe is skipped. The same endpoint accepts pushed
// batches of resolved candidates so future lookups hit the cache instead of
// the public service.
type Cache struct {
	BaseURL string
	Token   string
	// ReportEnabled gates pushes; lookups work either way.
	ReportEnabled bool
	HTTP          *http.Client
}

// NewCache builds the private cache source.
func NewCache(baseURL, token string, reportEnabled bool, client *http.Client) *Cache {
	return &Cache{BaseURL: baseURL, Token: token, ReportEnabled: reportEnabled, HTTP: client}
}

// Name identifies the source in logs and reports.
func (c *Cache) Name() string { return "cache" }

// Fetch looks the title up in the cache. An empty response is a cache miss,
// not an error.
func (c *Cache) Fetch(ctx context.Context, title string) ([]candidate.Record, error) {
	q := url.Values{}
	q.Set("q", title)
	if c.Token != "" {
		q.Set("t", c.Token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("cache request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, unreachable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: cache responded %d", ErrExhausted, resp.StatusCode)
	}

	var recs []candidate.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return recs, nil
}

// Push submits resolved candidates back to the cache. A 2xx response means
// the batch was accepted.
func (c *Cache) Push(ctx context.Context, recs []candidate.Record) error {
	if len(recs) == 0 {
		return nil
	}
	body, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("cache push encode: %w", err)
	}
	u := c.BaseURL
	if c.Token != "" {
		u += "?q=" + url.QueryEscape(c.Token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cache push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return unreachable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cache push rejected: %d", resp.StatusCode)
	}
	return nil
}
