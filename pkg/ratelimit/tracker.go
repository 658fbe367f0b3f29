package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultThrottleDelay is the pause applied to each request in the warning zone.
const DefaultThrottleDelay = 1 * time.Second

// ErrRateLimited is returned by callers that refuse a request after
// ShouldAllowRequest reported false.
var ErrRateLimited = errors.New("rate limit exhausted")

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "github_rate_limit_remaining",
		Help: "Number of requests remaining in the current GitHub rate limit window",
	}, []string{"resource"})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "github_rate_limit_blocks_total",
		Help: "Total number of requests blocked locally because the rate limit was exhausted",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "github_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the rate limit was running low",
	})
)

// Tracker monitors GitHub rate limits and gates requests.
type Tracker struct {
	store         Store
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a new rate limit tracker backed by store.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:         store,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay changes the pause applied in the warning zone.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState returns the current state of resource. A bucket without recorded
// state, or whose window has reset, is reported at its full limit.
func (t *Tracker) GetState(ctx context.Context, resource string) (*State, error) {
	state, err := t.store.Load(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}

	if state == nil {
		t.logger.Debug().Str("resource", resource).Msg("No rate limit state recorded, assuming full window")
		return DefaultState(resource), nil
	}

	if state.WindowExpired() {
		state.Remaining = state.Limit
	}

	return state, nil
}

// UpdateFromHeaders records the rate limit headers of a GitHub response.
// Responses without X-RateLimit-Remaining are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}

	resetStr := headers.Get("X-RateLimit-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-RateLimit-Reset header missing")
	}

	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
	}

	limit := remain
	if limitStr := headers.Get("X-RateLimit-Limit"); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse X-RateLimit-Limit header: %w", err)
		}
	}

	resource := headers.Get("X-RateLimit-Resource")
	if resource == "" {
		resource = ResourceCore
	}

	state := &State{
		Resource:   resource,
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    time.Unix(reset, 0),
		LastUpdate: time.Now(),
	}

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	rateLimitRemaining.WithLabelValues(resource).Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("resource", resource).
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Str("resource", resource).
			Int("remaining", remain).
			Int("limit", limit).
			Msg("GitHub rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Str("resource", resource).
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks whether a request against resource may be sent.
// Returns false while the window is exhausted. In the warning zone the
// request is allowed after a pause, cut short if ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, resource string) (bool, error) {
	state, err := t.GetState(ctx, resource)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Str("resource", resource).
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("GitHub rate limit exhausted - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		t.logger.Debug().
			Str("resource", resource).
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("GitHub rate limit low - throttling request")

		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
