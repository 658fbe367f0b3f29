package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a stored 200 response of the GitHub API together with the
// validators GitHub needs to answer a later conditional request with 304.
type CacheEntry struct {
	Data       []byte      `json:"data"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// ETag and LastModified are the validators sent back as If-None-Match
	// and If-Modified-Since. GitHub sends weak ETags on list endpoints.
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Expires ends freshness. Past it the entry is only used for revalidation.
	Expires time.Time `json:"expires"`

	CachedAt time.Time `json:"cached_at"`

	// RevalidatedAt is when GitHub last confirmed the entry with a 304.
	RevalidatedAt time.Time `json:"revalidated_at"`
}

// IsExpired reports whether the entry is past its freshness.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining freshness, 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// HasValidators reports whether the entry can be revalidated instead of refetched.
func (e *CacheEntry) HasValidators() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

// Revalidated records a 304 answer that keeps the entry fresh until expires.
func (e *CacheEntry) Revalidated(expires time.Time) {
	e.Expires = expires
	e.RevalidatedAt = time.Now()
}

// perExchangeHeaders describe a single round trip to GitHub. Replaying them
// from the cache would report a rate limit window that has moved on.
var perExchangeHeaders = []string{
	"Date",
	"Set-Cookie",
	"X-GitHub-Request-Id",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"X-RateLimit-Resource",
	"X-RateLimit-Used",
}

// storedHeaders returns the headers of h worth keeping in an entry.
func storedHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	for _, name := range perExchangeHeaders {
		out.Del(name)
	}
	return out
}
