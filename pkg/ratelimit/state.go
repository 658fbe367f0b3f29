// Package ratelimit implements GitHub primary rate limit tracking and request
// gating. It records the X-RateLimit-* headers of every response so that a
// request which GitHub would reject is refused locally instead.
package ratelimit

import (
	"time"
)

// ResourceCore is the rate limit bucket used by the REST API endpoints.
const ResourceCore = "core"

// Redis key prefix for rate limit state. One hash per principal and resource bucket.
const RedisKeyPrefix = "gh:rate_limit:"

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests while fewer requests than this remain
	// and the window has not reset yet.
	ThresholdCritical = 1

	// WarningFraction throttles requests once less than this share of the
	// window limit remains.
	WarningFraction = 0.1
)

// State is the last observed rate limit window of one resource bucket.
type State struct {
	// Resource is the bucket name from X-RateLimit-Resource ("core", "search", ...).
	Resource string `json:"resource"`

	// Limit is the number of requests allowed per window (X-RateLimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-RateLimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (X-RateLimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were recorded.
	LastUpdate time.Time `json:"last_update"`
}

// DefaultState is assumed for a bucket nothing is known about yet.
func DefaultState(resource string) *State {
	return &State{
		Resource:   resource,
		Limit:      60,
		Remaining:  60,
		ResetAt:    time.Now().Add(time.Hour),
		LastUpdate: time.Now(),
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// WindowExpired reports whether the window described by the state has reset.
func (s *State) WindowExpired() bool {
	return !time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be refused until ResetAt.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && !s.WindowExpired()
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	if s.Limit <= 0 || s.WindowExpired() || s.NeedsCriticalBlock() {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*WarningFraction
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsHealthy reports whether requests pass without restriction.
func (s *State) IsHealthy() bool {
	return !s.NeedsCriticalBlock() && !s.NeedsThrottling()
}
