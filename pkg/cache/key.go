package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached GitHub response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/orgs/golang/repos")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values

	// Principal identifies the credentials the response was fetched with
	// (empty for anonymous requests). Responses are never shared across principals.
	Principal string
}

// String generates a deterministic cache key string.
// Format: gh:endpoint:query1=val1:query2=val2:principal=abc
//
// Example:
//
//	gh:orgs/golang/repos:page=2:per_page=10
func (k CacheKey) String() string {
	parts := []string{"gh"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.Principal != "" {
		parts = append(parts, "principal="+k.Principal)
	}

	return strings.Join(parts, ":")
}
