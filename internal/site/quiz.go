package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"attbot/internal/candidate"
)

const maxPageBytes = 1 << 20

var (
	formRe = regexp.MustCompile(`(?s)<form[^>]*>.*?</form>`)
	imgRe  = regexp.MustCompile(`<img[^>]+src="([^"]+)"`)
)

func optionPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(`<input[^>]+name="` + regexp.QuoteMeta(field) + `"[^>]+value="([^"]+)"[^>]*>\s*([^<]+)`)
}

// FetchQuestion loads the attendance page and extracts the quiz: the poster
// image and the candidate title options. The poster's byte length is probed
// here so it is populated before answer resolution starts.
func (s *Session) FetchQuestion(ctx context.Context) (candidate.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoints.attendanceURL(), nil)
	if err != nil {
		return candidate.Question{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return candidate.Question{}, fmt.Errorf("attendance page: %w", err)
	}
	defer resp.Body.Close()
	if s.onLoginPage(resp) {
		return candidate.Question{}, ErrNotLoggedIn
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return candidate.Question{}, fmt.Errorf("attendance page read: %w", err)
	}

	posterURL, options, err := parseQuestion(string(body), s.endpoints.SubmitField)
	if err != nil {
		return candidate.Question{}, err
	}
	posterURL, err = s.absoluteURL(posterURL)
	if err != nil {
		return candidate.Question{}, err
	}

	length, err := s.probeLength(ctx, posterURL)
	if err != nil {
		return candidate.Question{}, fmt.Errorf("poster length: %w", err)
	}

	return candidate.Question{
		Poster: candidate.Poster{
			CaptureDate: time.Now(),
			URL:         posterURL,
			ByteLength:  length,
		},
		Options: options,
	}, nil
}

// Submit posts the chosen option's value. A 2xx response that does not
// bounce to the login page is the server's acknowledgement.
func (s *Session) Submit(ctx context.Context, opt candidate.Option) error {
	form := url.Values{s.endpoints.SubmitField: {opt.Value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoints.attendanceURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()
	if s.onLoginPage(resp) {
		return ErrNotLoggedIn
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("submit rejected: %d", resp.StatusCode)
	}
	s.log.Info("attendance submitted", zap.String("option", opt.Title))
	return nil
}

// parseQuestion locates the form carrying the quiz's option inputs and pulls
// the poster image plus every labeled option out of it.
func parseQuestion(page, field string) (string, []candidate.Option, error) {
	optRe := optionPattern(field)
	for _, form := range formRe.FindAllString(page, -1) {
		if !strings.Contains(form, `name="`+field+`"`) {
			continue
		}
		img := imgRe.FindStringSubmatch(form)
		if img == nil {
			return "", nil, fmt.Errorf("quiz form has no poster image")
		}
		var options []candidate.Option
		seen := make(map[string]struct{})
		for _, m := range optRe.FindAllStringSubmatch(form, -1) {
			title := strings.TrimSpace(m[2])
			if title == "" {
				continue
			}
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			options = append(options, candidate.Option{Title: title, Value: m[1]})
		}
		if len(options) == 0 {
			return "", nil, fmt.Errorf("quiz form has no options")
		}
		return img[1], options, nil
	}
	return "", nil, fmt.Errorf("no quiz form on attendance page")
}

func (s *Session) absoluteURL(ref string) (string, error) {
	base, err := url.Parse(s.endpoints.Base + "/")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (s *Session) probeLength(ctx context.Context, imgURL string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("image host exposed no length for %s", imgURL)
	}
	return uint64(resp.ContentLength), nil
}
