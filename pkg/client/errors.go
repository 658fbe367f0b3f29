package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
)

// ErrorKind classifies a failed request for callers and metrics.
type ErrorKind string

const (
	// KindValidation marks requests rejected before any I/O.
	KindValidation ErrorKind = "validation_error"

	// KindNetwork marks transport failures and timeouts.
	KindNetwork ErrorKind = "network_error"

	// KindRateLimit marks requests refused because the rate limit is exhausted,
	// by GitHub (403 or 429) or locally by the tracker.
	KindRateLimit ErrorKind = "rate_limit_exceeded"

	// KindAPI marks any other non-2xx response.
	KindAPI ErrorKind = "api_error"

	// KindUnknown marks everything else.
	KindUnknown ErrorKind = "unknown_error"
)

// User-facing messages.
const (
	MessageValidation  = "Invalid request parameters."
	MessageNetwork     = "Network error. Please check your internet connection and try again."
	MessageRateLimit   = "GitHub API rate limit exceeded. Please try again later."
	MessageUnavailable = "GitHub API is temporarily unavailable. Please try again later."
	MessageNotFound    = "Requested resource not found."
)

// APIError is a classified GitHub request failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int

	// Message is the technical detail, usually GitHub's "message" field.
	Message string

	// Resource names what a 404 refers to, e.g. `Organization "golang"`.
	Resource string

	// ResetAt is when the rate limit window resets, for KindRateLimit.
	ResetAt time.Time

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GitHub %s (status %d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GitHub %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message shown to end users.
func (e *APIError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return MessageValidation
	case KindNetwork:
		return MessageNetwork
	case KindRateLimit:
		return MessageRateLimit
	case KindAPI:
		switch {
		case e.StatusCode == http.StatusNotFound && e.Resource != "":
			return e.Resource + " not found."
		case e.StatusCode == http.StatusNotFound:
			return MessageNotFound
		case e.StatusCode >= 500:
			return MessageUnavailable
		default:
			return fmt.Sprintf("GitHub API request failed (status %d).", e.StatusCode)
		}
	default:
		return pagination.UnknownErrorMessage
	}
}

// Retryable reports whether repeating the request later may succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit:
		return true
	case KindAPI:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// KindOf returns the kind of err, KindUnknown when it is not an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func validationError(format string, args ...any) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}
