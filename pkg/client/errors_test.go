package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
)

func TestAPIError_UserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "validation",
			err:  &APIError{Kind: KindValidation},
			want: "Invalid request parameters.",
		},
		{
			name: "network",
			err:  &APIError{Kind: KindNetwork},
			want: "Network error. Please check your internet connection and try again.",
		},
		{
			name: "rate limit",
			err:  &APIError{Kind: KindRateLimit, StatusCode: 403},
			want: "GitHub API rate limit exceeded. Please try again later.",
		},
		{
			name: "organization not found",
			err:  &APIError{Kind: KindAPI, StatusCode: 404, Resource: `Organization "nope"`},
			want: `Organization "nope" not found.`,
		},
		{
			name: "not found without resource",
			err:  &APIError{Kind: KindAPI, StatusCode: 404},
			want: MessageNotFound,
		},
		{
			name: "server error",
			err:  &APIError{Kind: KindAPI, StatusCode: 502},
			want: "GitHub API is temporarily unavailable. Please try again later.",
		},
		{
			name: "other status",
			err:  &APIError{Kind: KindAPI, StatusCode: 422},
			want: "GitHub API request failed (status 422).",
		},
		{
			name: "unknown",
			err:  &APIError{Kind: KindUnknown},
			want: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.UserMessage(); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &APIError{
				Kind:    KindNetwork,
				Message: "request failed",
				Err:     errors.New("connection refused"),
			},
			expected: "GitHub network_error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &APIError{
				Kind:       KindAPI,
				StatusCode: 404,
				Message:    "Not Found",
			},
			expected: "GitHub api_error (status 404): Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: timeout")
	err := &APIError{Kind: KindNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is() = false, want true for wrapped error")
	}

	wrapped := fmt.Errorf("list repos: %w", err)
	if KindOf(wrapped) != KindNetwork {
		t.Errorf("KindOf() = %q, want %q", KindOf(wrapped), KindNetwork)
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf() of plain error should be unknown")
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		err  *APIError
		want bool
	}{
		{&APIError{Kind: KindValidation}, false},
		{&APIError{Kind: KindNetwork}, true},
		{&APIError{Kind: KindRateLimit}, true},
		{&APIError{Kind: KindAPI, StatusCode: 404}, false},
		{&APIError{Kind: KindAPI, StatusCode: 503}, true},
		{&APIError{Kind: KindUnknown}, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.err.Kind, tt.err.StatusCode), func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIError_ImplementsUserMessager(t *testing.T) {
	err := fmt.Errorf("fetch page 3: %w", &APIError{Kind: KindNetwork})

	if got := pagination.UserMessage(err); got != MessageNetwork {
		t.Errorf("pagination.UserMessage() = %q, want %q", got, MessageNetwork)
	}
}
