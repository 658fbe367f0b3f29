// Package cache stores GitHub API responses in Redis for conditional requests.
//
// GitHub does not count a 304 Not Modified answer against the rate limit, so
// every cached response keeps its validators (ETag, Last-Modified) after it
// goes stale and is revalidated instead of refetched.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/orgs/golang/repos",
//		QueryParams: url.Values{"page": []string{"2"}, "per_page": []string{"10"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case err == cache.ErrCacheMiss:
//		// fetch from GitHub
//	case !entry.IsExpired():
//		// serve entry directly
//	case cache.ShouldMakeConditionalRequest(entry):
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Freshness
//
// An entry is fresh until Cache-Control max-age (or Expires, or DefaultTTL)
// elapses. Redis keeps it for DefaultStaleRetention longer so that it can still be
// revalidated.
//
// # Metrics
//
//   - github_cache_hits_total{layer="redis"}
//   - github_cache_misses_total
//   - github_cache_size_bytes{layer="redis"}
//   - github_304_responses_total
//   - github_conditional_requests_total
//   - github_cache_errors_total{operation}
package cache
