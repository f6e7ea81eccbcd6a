package site

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is a cookie jar for a single site with JSON file persistence. All
// mutation goes through one mutex: concurrent requests under a session share
// the jar, and writes must be serialized.
type Jar struct {
	mu    sync.Mutex
	inner http.CookieJar
	base  *url.URL
}

// NewJar builds an empty jar scoped to the given base URL.
func NewJar(base string) (*Jar, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{inner: inner, base: u}, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Save writes the site's cookies to path as JSON.
func (j *Jar) Save(path string) error {
	j.mu.Lock()
	cookies := j.inner.Cookies(j.base)
	j.mu.Unlock()

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load replaces the site's cookies with the contents of path. A missing file
// is not an error; the jar just starts empty.
func (j *Jar) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(j.base, cookies)
	return nil
}
