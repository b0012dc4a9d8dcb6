// Package generation turns a stored transcript into a draft post through an
// external text-generation provider.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Options tune a single completion.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a bare JSON object.
	JSON bool
}

// DefaultOptions are used for post generation.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   1024,
		JSON:        true,
	}
}

// Provider is a text-generation backend. Non-2xx responses are reported as
// *HTTPError so callers can tell auth, rate limit and server failures apart.
type Provider interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// HTTPError is a provider response with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}

	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Generation failures. Anything not listed here is absorbed by the parse
// fallback chain.
var (
	ErrRecordingNotFound   = errors.New("recording not found")
	ErrTranscriptMissing   = errors.New("transcript not found")
	ErrProviderAuth        = errors.New("provider authentication failed")
	ErrProviderRateLimited = errors.New("provider rate limit exceeded")
	ErrProviderServer      = errors.New("provider server error")
	ErrProviderHTTP        = errors.New("provider request failed")
	ErrPersistence         = errors.New("failed to persist post")
)

// classify maps a provider error to one of the Err* kinds, or returns nil
// when the error carries no HTTP status.
func classify(err error) error {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return nil
	}

	var kind error

	switch code := httpErr.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrProviderAuth
	case code == http.StatusTooManyRequests:
		kind = ErrProviderRateLimited
	case code >= 500:
		kind = ErrProviderServer
	default:
		kind = ErrProviderHTTP
	}

	return fmt.Errorf("%w: %w", kind, err)
}
