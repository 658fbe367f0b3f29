// Package client provides a GitHub REST API client with rate limit tracking,
// conditional-request caching and classified errors.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/gh-org-repos/pkg/cache"
	"github.com/Sternrassler/gh-org-repos/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// APIVersion is sent as X-GitHub-Api-Version on every request.
const APIVersion = "2022-11-28"

// Prometheus metrics for GitHub client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_requests_total",
		Help: "Total GitHub requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "github_request_duration_seconds",
		Help:    "GitHub request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "github_errors_total",
		Help: "Total GitHub request errors by kind",
	}, []string{"kind"})
)

// Client is a GitHub REST API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	principal   string
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis enables the response cache and shares rate limit state between
	// processes. Optional: without it rate limits are tracked in memory and
	// nothing is cached.
	Redis *redis.Client

	// BaseURL of the REST API. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is an optional personal access token. Unauthenticated clients get
	// 60 requests per hour.
	Token string

	// UserAgent header (REQUIRED by GitHub)
	// Format: "AppName/Version (contact)"
	UserAgent string

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:     redis,
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   10 * time.Second,
	}
}

// New creates a new GitHub client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := log.With().Str("component", "github-client").Logger()

	principal := principalOf(cfg.Token)

	var store ratelimit.Store = ratelimit.NewMemoryStore()
	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis, principal)
		cacheManager = cache.NewManager(cfg.Redis)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		rateLimiter: ratelimit.NewTracker(store, logger),
		cache:       cacheManager,
		principal:   principal,
		config:      cfg,
		logger:      logger,
	}, nil
}

// principalOf derives the cache and rate limit key component of token
// without storing it.
func principalOf(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// Non-2xx responses are returned as *APIError with the body closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx, ratelimit.ResourceCore)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.classifyTransportError(endpoint, ctxErr)
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		apiErr := &APIError{
			Kind:    KindRateLimit,
			Message: "request blocked locally until the rate limit window resets",
			Err:     ratelimit.ErrRateLimited,
		}
		if state, err := c.rateLimiter.GetState(ctx, ratelimit.ResourceCore); err == nil {
			apiErr.ResetAt = state.ResetAt
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Time("reset_at", apiErr.ResetAt).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		errorsTotal.WithLabelValues(string(KindRateLimit)).Inc()
		return nil, apiErr
	}

	// Step 2: Check Cache
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
		Principal:   c.principal,
	}

	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	if cachedEntry != nil && !cachedEntry.IsExpired() {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Dur("ttl", cachedEntry.TTL()).
			Msg("Serving fresh cache entry")
		requestsTotal.WithLabelValues(endpoint, "cache").Inc()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 3: Make Conditional Request for stale entries
	if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Set GitHub headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	// Step 5: Execute HTTP Request
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("query", req.URL.RawQuery).
		Msg("Executing GitHub request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(endpoint, err)
	}

	// Step 6: Update Rate Limit from headers
	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	// Step 7: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		newExpires := cache.ParseExpires(resp.Header)
		if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		cachedEntry.Expires = newExpires
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 8: Classify errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyResponse(endpoint, resp)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 9: Update Cache on success
	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// classifyTransportError wraps a failed round trip.
func (c *Client) classifyTransportError(endpoint string, err error) *APIError {
	c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
	errorsTotal.WithLabelValues(string(KindNetwork)).Inc()
	requestsTotal.WithLabelValues(endpoint, "network_error").Inc()

	return &APIError{
		Kind:    KindNetwork,
		Message: "request failed",
		Err:     err,
	}
}

// classifyResponse turns a non-2xx response into an *APIError and closes its body.
func (c *Client) classifyResponse(endpoint string, resp *http.Response) *APIError {
	defer resp.Body.Close()

	var payload struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		payload.Message = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{
		Kind:       KindAPI,
		StatusCode: resp.StatusCode,
		Message:    payload.Message,
	}

	if isRateLimited(resp, payload.Message) {
		apiErr.Kind = KindRateLimit
		apiErr.ResetAt = resetTime(resp.Header)
	}

	errorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_kind", string(apiErr.Kind)).
		Str("message", apiErr.Message).
		Msg("GitHub request error")

	return apiErr
}

// isRateLimited reports whether a 403/429 was caused by a primary or
// secondary rate limit rather than missing permissions.
func isRateLimited(resp *http.Response, message string) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
			return true
		}
		return strings.Contains(strings.ToLower(message), "rate limit")
	default:
		return false
	}
}

// resetTime reads when a rate-limited request may be repeated.
func resetTime(h http.Header) time.Time {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	if epoch, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		return time.Unix(epoch, 0)
	}
	return time.Time{}
}

// Get performs a GET request to a REST API path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// RateLimit returns the last observed core rate limit window.
func (c *Client) RateLimit(ctx context.Context) (*ratelimit.State, error) {
	return c.rateLimiter.GetState(ctx, ratelimit.ResourceCore)
}

// GetCache returns the cache manager, nil when no Redis is configured.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
