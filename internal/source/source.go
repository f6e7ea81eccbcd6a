// Package source contains the candidate providers: the public movie-metadata
// service and the private cache of previously resolved answers, plus the
// byte-length prober. Both providers normalize into candidate.Record at the
// boundary so the resolution engine sees a single shape.
package source

import (
	"context"
	"net/http"
	"time"

	"attbot/internal/candidate"
)

// Source yields candidate records for an option title. Implementations are
// stateless apart from their base URL and auth token, and must honor the
// context so in-flight fetches can be abandoned once an answer is found.
type Source interface {
	Name() string
	Fetch(ctx context.Context, title string) ([]candidate.Record, error)
}

// UserAgent is sent on every outbound request. The image host serves a
// different encoding (and therefore a different byte length) to clients it
// does not recognize as browsers.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.0.0 Safari/537.36"

type uaTransport struct {
	next http.RoundTripper
}

func (t uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.next.RoundTrip(req)
}

// NewHTTPClient builds the outbound client shared by providers and probes:
// bounded timeout, bounded redirects, browser User-Agent. Callers that need
// a cookie jar attach one to the returned client.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: uaTransport{next: http.DefaultTransport},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
