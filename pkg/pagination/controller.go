package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Status is the activity state of a Controller.
type Status int

const (
	// StatusIdle means no fetch or backoff is in progress.
	StatusIdle Status = iota

	// StatusLoading means a page fetch is in flight.
	StatusLoading

	// StatusRetrying means a retry is waiting out its backoff.
	StatusRetrying
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Config holds the controller configuration.
type Config struct {
	// PageSize is the number of items requested per page (1-100).
	PageSize int

	// MinimumItemFloor is the item count at which an incomplete page is
	// treated as the normal end of the listing.
	MinimumItemFloor int

	// MaxRetries bounds RetryCount.
	MaxRetries int

	// Backoff is the delay schedule for Retry.
	Backoff BackoffConfig

	// Sleep waits out retry backoff. Defaults to a timer honoring ctx.
	Sleep SleepFunc

	// Logger receives controller events. Defaults to the global logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:         10,
		MinimumItemFloor: 30,
		MaxRetries:       3,
		Backoff:          DefaultBackoffConfig(),
	}
}

// State is a snapshot of a controller's mutable record.
type State[T any] struct {
	Items      []T
	Cursor     int
	Status     Status
	LastError  string
	Exhausted  bool
	RetryCount int
	MaxRetries int

	// Cause is the error behind LastError, nil when LastError is empty.
	Cause error
}

// CanRetry reports whether a Retry call would start an attempt.
func (s State[T]) CanRetry() bool {
	return s.LastError != "" && s.RetryCount < s.MaxRetries && s.Status != StatusRetrying
}

// IsBusy reports whether a fetch or backoff is in progress.
func (s State[T]) IsBusy() bool {
	return s.Status == StatusLoading || s.Status == StatusRetrying
}

// IsExhausted reports whether the listing has visibly ended.
func (s State[T]) IsExhausted() bool {
	return s.Exhausted && len(s.Items) > 0 && !s.IsBusy()
}

// loadRequest identifies one fetch. generation ties it to the reset epoch it
// was issued in.
type loadRequest struct {
	id         string
	generation uint64
	page       int
}

// Controller accumulates pages from a PageFetcher.
// All methods are safe for concurrent use.
type Controller[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
	initial []T

	mu         sync.Mutex
	items      []T
	cursor     int
	status     Status
	lastError  string
	cause      error
	exhausted  bool
	retryCount int
	generation uint64
}

// NewController creates a controller whose initial state holds a copy of initial.
// Zero-valued config fields fall back to DefaultConfig.
func NewController[T any](fetcher PageFetcher[T], cfg Config, initial []T) (*Controller[T], error) {
	if fetcher == nil {
		return nil, invalidConfig("page fetcher is required")
	}

	defaults := DefaultConfig()
	if cfg.PageSize == 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.MinimumItemFloor == 0 {
		cfg.MinimumItemFloor = defaults.MinimumItemFloor
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return nil, invalidConfig("page size must be between 1 and 100 (got %d)", cfg.PageSize)
	}
	if cfg.MaxRetries < 0 {
		return nil, invalidConfig("max retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.MinimumItemFloor < 0 {
		return nil, invalidConfig("minimum item floor must be >= 0 (got %d)", cfg.MinimumItemFloor)
	}

	logger := log.With().Str("component", "pagination").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "pagination").Logger()
	}

	c := &Controller[T]{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
		initial: cloneItems(initial),
	}
	c.resetLocked()
	return c, nil
}

// State returns a snapshot of the current state. The Items slice is a copy.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State[T]{
		Items:      cloneItems(c.items),
		Cursor:     c.cursor,
		Status:     c.status,
		LastError:  c.lastError,
		Exhausted:  c.exhausted,
		RetryCount: c.retryCount,
		MaxRetries: c.config.MaxRetries,
		Cause:      c.cause,
	}
}

// LoadMore fetches the page after Cursor and appends it.
// It is a no-op while a fetch or retry is in progress or once the listing is
// exhausted. Failures are recorded in State, never returned.
func (c *Controller[T]) LoadMore(ctx context.Context) {
	c.mu.Lock()
	if c.status != StatusIdle || c.exhausted {
		c.logger.Debug().
			Str("status", c.status.String()).
			Bool("exhausted", c.exhausted).
			Msg("Load skipped")
		c.mu.Unlock()
		return
	}
	req := c.beginLoadLocked()
	c.mu.Unlock()

	c.fetch(ctx, req)
}

// OnBoundary is the boundary-reached signal. It starts a load only when the
// controller is idle, not exhausted and not holding an error; after a failure
// only Retry resumes loading. Returns whether a load was started.
func (c *Controller[T]) OnBoundary(ctx context.Context) bool {
	c.mu.Lock()
	if c.status != StatusIdle || c.exhausted || c.lastError != "" {
		c.mu.Unlock()
		return false
	}
	req := c.beginLoadLocked()
	c.mu.Unlock()

	c.fetch(ctx, req)
	return true
}

// Retry waits out the backoff for the next attempt and then loads once.
// It is a no-op while busy, once the listing is exhausted or once RetryCount
// has reached MaxRetries. A failed attempt is recorded in State; Retry never
// schedules another attempt itself.
func (c *Controller[T]) Retry(ctx context.Context) {
	c.mu.Lock()
	if c.status != StatusIdle || c.exhausted || c.retryCount >= c.config.MaxRetries {
		c.logger.Debug().
			Str("status", c.status.String()).
			Bool("exhausted", c.exhausted).
			Int("retry_count", c.retryCount).
			Msg("Retry skipped")
		c.mu.Unlock()
		return
	}
	c.status = StatusRetrying
	c.retryCount++
	attempt := c.retryCount
	generation := c.generation
	c.mu.Unlock()

	delay := c.config.Backoff.Delay(attempt)
	RetriesTotal.Inc()
	RetryBackoffSeconds.Observe(delay.Seconds())

	c.logger.Warn().
		Int("retry_count", attempt).
		Int("max_retries", c.config.MaxRetries).
		Dur("backoff", delay).
		Msg("Retrying page load after backoff")

	sleepErr := c.config.Sleep(ctx, delay)

	c.mu.Lock()
	if generation != c.generation {
		c.logger.Debug().Uint64("generation", generation).Msg("Retry abandoned after reset")
		c.mu.Unlock()
		return
	}
	if sleepErr != nil {
		// The attempt is spent; the previous error stays visible.
		c.status = StatusIdle
		c.logger.Warn().Err(sleepErr).Int("retry_count", attempt).Msg("Retry backoff interrupted")
		c.mu.Unlock()
		return
	}
	req := c.beginLoadLocked()
	c.mu.Unlock()

	c.fetch(ctx, req)
}

// Reset restores the initial snapshot. In-flight fetches and retries from
// before the reset are ignored when they settle.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.resetLocked()
	ItemsLoaded.Set(float64(len(c.items)))

	c.logger.Debug().
		Uint64("generation", c.generation).
		Int("items", len(c.items)).
		Msg("Pagination reset")
}

func (c *Controller[T]) resetLocked() {
	c.items = cloneItems(c.initial)
	c.cursor = 1
	c.status = StatusIdle
	c.lastError = ""
	c.cause = nil
	c.exhausted = false
	c.retryCount = 0
}

// beginLoadLocked moves the controller to StatusLoading and describes the fetch.
func (c *Controller[T]) beginLoadLocked() loadRequest {
	c.status = StatusLoading
	c.lastError = ""
	c.cause = nil
	return loadRequest{
		id:         uuid.NewString(),
		generation: c.generation,
		page:       c.cursor + 1,
	}
}

// fetch performs req without holding the lock and applies the outcome.
func (c *Controller[T]) fetch(ctx context.Context, req loadRequest) {
	start := time.Now()

	c.logger.Debug().
		Str("load_id", req.id).
		Int("page", req.page).
		Int("per_page", c.config.PageSize).
		Msg("Loading page")

	page, err := c.fetcher.FetchPage(ctx, req.page, c.config.PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if req.generation != c.generation {
		StaleResponsesTotal.Inc()
		c.logger.Debug().
			Str("load_id", req.id).
			Uint64("generation", req.generation).
			Uint64("current_generation", c.generation).
			Msg("Discarding stale page response")
		return
	}

	if err != nil {
		c.lastError = UserMessage(err)
		c.cause = err
		c.status = StatusIdle
		LoadsTotal.WithLabelValues("failure").Inc()

		c.logger.Warn().
			Err(err).
			Str("load_id", req.id).
			Int("page", req.page).
			Int("retry_count", c.retryCount).
			Dur("duration", time.Since(start)).
			Msg("Page load failed")
		return
	}

	c.items = append(c.items, page.Items...)
	c.cursor++
	// An incomplete page ends the listing; a full page never does, even past the floor.
	c.exhausted = !page.HasMore
	c.retryCount = 0
	c.status = StatusIdle
	LoadsTotal.WithLabelValues("success").Inc()
	ItemsLoaded.Set(float64(len(c.items)))

	c.logger.Info().
		Str("load_id", req.id).
		Int("page", req.page).
		Int("received", len(page.Items)).
		Int("total", len(c.items)).
		Bool("exhausted", c.exhausted).
		Bool("floor_reached", len(c.items) >= c.config.MinimumItemFloor).
		Dur("duration", time.Since(start)).
		Msg("Page loaded")
}

func cloneItems[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
