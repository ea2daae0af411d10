// Package llm exposes the generative-text capability used for relevance
// scoring and answer generation. It adapts an Eino chat model to a single
// prompt-in/text-out call and classifies backend failures into the statuses
// the retry logic branches on: overloaded, quota exceeded, other status, and
// transient (transport or malformed response).
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrOverloaded matches a 503 / UNAVAILABLE response from the backend.
	ErrOverloaded = errors.New("llm: backend overloaded")
	// ErrQuotaExceeded matches a 429 / RESOURCE_EXHAUSTED response.
	ErrQuotaExceeded = errors.New("llm: quota exceeded")
	// ErrMalformedResponse is returned when the response envelope carries no
	// usable text.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// Options tunes a single completion call.
type Options struct {
	// Temperature controls randomness (0.0–1.0).
	Temperature float32
	// MaxTokens caps the generated output.
	MaxTokens int
}

// Client is the prompt-in/text-out capability.
// Implementations must be safe to call from multiple goroutines.
type Client interface {
	// Complete sends prompt and returns the generated text. Errors are
	// classified: errors.Is(err, ErrOverloaded), errors.Is(err,
	// ErrQuotaExceeded), errors.As(err, **StatusError) for any other HTTP
	// status, ErrMalformedResponse for empty envelopes.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// StatusError is a non-success HTTP status reported by the backend.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Message is the backend's error message, if any.
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: backend returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("llm: backend returned HTTP %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match 503 to ErrOverloaded and 429 to ErrQuotaExceeded.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrOverloaded:
		return e.Code == http.StatusServiceUnavailable
	case ErrQuotaExceeded:
		return e.Code == http.StatusTooManyRequests
	}
	return false
}

// statusPattern extracts an HTTP status from error strings produced by SDKs
// that do not expose a typed error (e.g. "status code: 429", "Error 503,",
// "HTTP 500").
var statusPattern = regexp.MustCompile(`(?i)(?:status code:?|error|http)\s*([1-5]\d\d)\b`)

// Classify converts a backend error into a *StatusError when a status can be
// recovered from it. Context errors and unrecognised errors are returned
// unchanged so callers treat them as transport failures.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *StatusError
	if errors.As(err, &se) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}

	msg := err.Error()
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 400 {
			return &StatusError{Code: code, Message: msg}
		}
	}
	upper := strings.ToUpper(msg)
	switch {
	case strings.Contains(upper, "RESOURCE_EXHAUSTED"):
		return &StatusError{Code: http.StatusTooManyRequests, Message: msg}
	case strings.Contains(upper, "UNAVAILABLE"), strings.Contains(upper, "OVERLOADED"):
		return &StatusError{Code: http.StatusServiceUnavailable, Message: msg}
	}
	return err
}
