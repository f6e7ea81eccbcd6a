package source

import (
	"errors"
	"fmt"
)

// Provider failure classes. The resolution engine absorbs all of them per
// candidate; the orchestrator treats everything except credential failures
// as retryable.
var (
	// ErrUnreachable wraps transport and timeout failures.
	ErrUnreachable = errors.New("source unreachable")

	// ErrExhausted means the provider responded but had nothing usable.
	ErrExhausted = errors.New("source exhausted")

	// ErrMalformed means the response did not parse. Callers treat it the
	// same as ErrExhausted for the affected source.
	ErrMalformed = errors.New("malformed response")

	// ErrLengthUnavailable means the image host did not expose a usable
	// Content-Length. The candidate is dropped from consideration.
	ErrLengthUnavailable = errors.New("image length unavailable")
)

func unreachable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
