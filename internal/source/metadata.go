package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"attbot/internal/candidate"
)

// DefaultMetadataURL is the public suggest endpoint queried for option titles.
const DefaultMetadataURL = "https://movie.douban.com/j/subject_suggest"

// Metadata queries the public movie-metadata service. The provider ranks the
// best match first, so only the first element of the response is considered;
// it never carries a byte length, which must be probed separately.
type Metadata struct {
	BaseURL string
	HTTP    *http.Client
}

// NewMetadata builds the public metadata source.
func NewMetadata(baseURL string, client *http.Client) *Metadata {
	if baseURL == "" {
		baseURL = DefaultMetadataURL
	}
	return &Metadata{BaseURL: baseURL, HTTP: client}
}

// Name identifies the source in logs and reports.
func (m *Metadata) Name() string { return "metadata" }

type suggestItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SubTitle string `json:"sub_title"`
	Img      string `json:"img"`
}

// Fetch returns at most one candidate for the given title.
func (m *Metadata) Fetch(ctx context.Context, title string) ([]candidate.Record, error) {
	u := m.BaseURL + "?q=" + url.QueryEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	resp, err := m.HTTP.Do(req)
	if err != nil {
		return nil, unreachable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: metadata responded %d", ErrExhausted, resp.StatusCode)
	}

	var items []suggestItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no suggestion for %q", ErrExhausted, title)
	}

	first := items[0]
	return []candidate.Record{{
		ID:     first.ID,
		Title:  first.Title,
		ImgURL: first.Img,
	}}, nil
}
