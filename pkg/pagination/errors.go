package pagination

import (
	"errors"
	"fmt"
)

// UnknownErrorMessage is surfaced for failures the fetcher did not classify.
const UnknownErrorMessage = "An unexpected error occurred"

// ErrInvalidConfig is returned by NewController for unusable configurations.
var ErrInvalidConfig = errors.New("invalid pagination config")

// UserMessager is implemented by errors that carry a message meant for the
// person looking at the list rather than for logs.
type UserMessager interface {
	UserMessage() string
}

// UserMessage returns the display message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return UnknownErrorMessage
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
