package pagination

import (
	"context"
	"time"
)

// BackoffConfig holds the delay schedule for manual retries.
type BackoffConfig struct {
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay of any single retry.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between consecutive retries.
	BackoffMultiplier float64
}

// DefaultBackoffConfig returns the default schedule: 1s, 2s, 4s, ... capped at 10s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// withDefaults fills each zero field from DefaultBackoffConfig.
func (b BackoffConfig) withDefaults() BackoffConfig {
	defaults := DefaultBackoffConfig()
	if b.InitialBackoff == 0 {
		b.InitialBackoff = defaults.InitialBackoff
	}
	if b.MaxBackoff == 0 {
		b.MaxBackoff = defaults.MaxBackoff
	}
	if b.BackoffMultiplier == 0 {
		b.BackoffMultiplier = defaults.BackoffMultiplier
	}
	return b
}

// Delay returns the wait before retry number attempt (1-based):
// min(InitialBackoff * BackoffMultiplier^(attempt-1), MaxBackoff).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	backoff := b.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * b.BackoffMultiplier)
		if b.MaxBackoff > 0 && backoff >= b.MaxBackoff {
			return b.MaxBackoff
		}
	}
	if b.MaxBackoff > 0 && backoff > b.MaxBackoff {
		return b.MaxBackoff
	}
	return backoff
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
