package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransientExtraction marks a parse failure worth retrying.
var ErrTransientExtraction = errors.New("transient extraction error")

// AccessBlockedError is returned when the platform refused the client
// (403, bot check, rate limiting). It is never retried by the fetcher: the
// caller may switch persona instead.
type AccessBlockedError struct {
	Persona string
	Message string
}

func (e *AccessBlockedError) Error() string {
	if e.Persona == "" {
		return "access blocked: " + e.Message
	}
	return fmt.Sprintf("access blocked (persona %s): %s", e.Persona, e.Message)
}

// ExtractionFailure wraps the last error after the retry policy gave up, or
// the first non retryable one.
type ExtractionFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ExtractionFailure) Error() string {
	return e.Err.Error()
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

var (
	transientPatterns = []string{
		"Cannot parse data",
	}
	blockedPatterns = []string{
		"HTTP Error 403",
		"403: Forbidden",
		"Sign in to confirm",
		"confirm you're not a bot",
		"rate-limit",
		"rate limit",
		"HTTP Error 429",
		"Too Many Requests",
	}
)

// classify maps the stderr of a failed yt-dlp run onto the error taxonomy.
func classify(persona, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = "yt-dlp exited without output"
	}

	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %s", ErrTransientExtraction, msg)
		}
	}

	lower := strings.ToLower(msg)
	for _, p := range blockedPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return &AccessBlockedError{Persona: persona, Message: msg}
		}
	}

	return errors.New(msg)
}

// IsAccessBlocked reports whether err carries an AccessBlockedError.
func IsAccessBlocked(err error) bool {
	var blocked *AccessBlockedError
	return errors.As(err, &blocked)
}

// IsTransient is the default retry predicate.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientExtraction)
}
