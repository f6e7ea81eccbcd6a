package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"attbot/internal/source"
)

// ErrCredential means the site rejected the login. Retrying cannot change
// the outcome, so orchestrators must treat it as fatal.
var ErrCredential = errors.New("username or password rejected")

// ErrNotLoggedIn means a page that requires authentication redirected to the
// login page. Retryable: the caller should re-login.
var ErrNotLoggedIn = errors.New("session not logged in")

// Credential is one configured user.
type Credential struct {
	Name     string
	Password string
}

// Session is one user's authenticated, cookie-backed identity. It owns the
// login lifecycle and the cookie jar; the jar is loaded once at creation if a
// persistence path is configured, saved after every successful login, and
// saved again at Close.
type Session struct {
	cred       Credential
	endpoints  Endpoints
	jar        *Jar
	client     *http.Client
	cookiePath string // empty disables persistence
	log        *zap.Logger

	mu       sync.Mutex
	loggedIn bool
}

// NewSession builds a session for the user. cookiePath may be empty for
// throwaway sessions (temp-user mode).
func NewSession(cred Credential, ep Endpoints, cookiePath string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	jar, err := NewJar(ep.Base)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := source.NewHTTPClient(30 * time.Second)
	client.Jar = jar

	s := &Session{
		cred:       cred,
		endpoints:  ep,
		jar:        jar,
		client:     client,
		cookiePath: cookiePath,
		log:        log.With(zap.String("user", cred.Name)),
	}
	if cookiePath != "" {
		if err := jar.Load(cookiePath); err != nil {
			s.log.Warn("cookie load failed, starting with empty jar", zap.Error(err))
		}
	}
	return s, nil
}

// User returns the session's user name.
func (s *Session) User() string { return s.cred.Name }

// onLoginPage reports whether the response resolved to the login page after
// redirects. The site does not use distinct status codes for auth failure.
func (s *Session) onLoginPage(resp *http.Response) bool {
	final := resp.Request.URL
	return strings.Contains(final.Path, s.endpoints.LoginPage)
}

// Login posts credentials. Success is determined by the response not
// resolving back to the login page; a redirect there is a credential
// rejection and is never retried.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) error {
	form := url.Values{
		"username": {s.cred.Name},
		"password": {s.cred.Password},
		"logout":   {"7days"},
		"returnto": {s.endpoints.Attendance},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoints.takeLoginURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 || s.onLoginPage(resp) {
		return ErrCredential
	}

	s.loggedIn = true
	s.log.Info("logged in")
	s.saveCookiesLocked()
	return nil
}

// EnsureLoggedIn verifies the current cookies still authenticate, logging in
// again when they do not. Persisted cookies usually make the login POST
// unnecessary.
func (s *Session) EnsureLoggedIn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoints.attendanceURL(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("session check: %w", err)
	}
	resp.Body.Close()

	if !s.onLoginPage(resp) {
		s.loggedIn = true
		return nil
	}
	s.log.Debug("cookies expired, logging in again")
	return s.loginLocked(ctx)
}

// Close persists cookies on orderly shutdown.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookiePath == "" {
		return nil
	}
	return s.jar.Save(s.cookiePath)
}

func (s *Session) saveCookiesLocked() {
	if s.cookiePath == "" {
		return
	}
	if err := s.jar.Save(s.cookiePath); err != nil {
		s.log.Warn("cookie save failed", zap.Error(err))
	}
}
