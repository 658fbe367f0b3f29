// Package testutil provides testing utilities for the GitHub client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRepo is the subset of the GitHub repository payload the mock serves.
type MockRepo struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	Private         bool   `json:"private"`
}

// MockGitHub is a configurable mock GitHub REST API for testing.
// Organizations registered with SetOrg serve /orgs/{org}/repos with
// page/per_page pagination, Link headers, ETags and rate limit headers.
type MockGitHub struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	orgs     map[string]int
	failures map[string]pageFailure

	rateLimit     int
	rateRemaining int
	rateReset     time.Time

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	LastQuery         string
}

// NewMockGitHub creates a new mock GitHub server.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		orgs:          make(map[string]int),
		failures:      make(map[string]pageFailure),
		rateLimit:     5000,
		rateRemaining: 5000,
		rateReset:     time.Now().Add(time.Hour),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.RawQuery

		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = ""
}

// SetOrg registers an organization with repoCount public repositories.
func (m *MockGitHub) SetOrg(org string, repoCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org] = repoCount
}

// pageFailure is an injected error answer for one page.
type pageFailure struct {
	remaining int
	status    int
}

// FailPage makes the next count requests for page of org answer 502.
func (m *MockGitHub) FailPage(org string, page, count int) {
	m.FailPageStatus(org, page, count, http.StatusBadGateway)
}

// FailPageStatus makes the next count requests for page of org answer status.
func (m *MockGitHub) FailPageStatus(org string, page, count, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pageKey(org, page)] = pageFailure{remaining: count, status: status}
}

func pageKey(org string, page int) string {
	return org + "#" + strconv.Itoa(page)
}

// SetRateLimit sets the rate limit window reported by subsequent responses.
func (m *MockGitHub) SetRateLimit(limit, remaining int, reset time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimit = limit
	m.rateRemaining = remaining
	m.rateReset = reset
}

// SetHandler sets a custom handler for a specific path.
func (m *MockGitHub) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ClearHandler removes a custom handler so the default behavior applies again.
func (m *MockGitHub) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, path)
}

// SetResponse configures a simple response for a path.
func (m *MockGitHub) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGitHub) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockGitHub) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockGitHub) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// RepoPath returns the org repository listing path.
func RepoPath(org string) string {
	return "/orgs/" + org + "/repos"
}

// defaultHandler serves registered organizations and 404s everything else.
func (m *MockGitHub) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "orgs" || parts[2] != "repos" {
		m.writeRateHeaders(w, false)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
		return
	}

	org := parts[1]
	m.mu.RLock()
	total, ok := m.orgs[org]
	m.mu.RUnlock()
	if !ok {
		m.writeRateHeaders(w, true)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found", "documentation_url": "https://docs.github.com/rest/repos/repos#list-organization-repositories"}`))
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 30)
	if perPage > 100 {
		perPage = 100
	}

	etag := fmt.Sprintf(`W/"%s-%d-%d-%d"`, org, total, page, perPage)
	if r.Header.Get("If-None-Match") == etag {
		// Conditional hits do not count against the rate limit.
		m.writeRateHeaders(w, false)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, max-age=60, s-maxage=60")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	m.mu.Lock()
	if failure := m.failures[pageKey(org, page)]; failure.remaining > 0 {
		failure.remaining--
		m.failures[pageKey(org, page)] = failure
		m.mu.Unlock()
		w.WriteHeader(failure.status)
		w.Write([]byte(fmt.Sprintf(`{"message": %q}`, http.StatusText(failure.status))))
		return
	}
	if m.rateRemaining <= 0 && time.Now().Before(m.rateReset) {
		m.mu.Unlock()
		m.writeRateHeaders(w, false)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "API rate limit exceeded for 127.0.0.1."}`))
		return
	}
	m.mu.Unlock()

	repos := make([]MockRepo, 0, perPage)
	for i := (page-1)*perPage + 1; i <= page*perPage && i <= total; i++ {
		repos = append(repos, NewMockRepo(org, i))
	}

	lastPage := (total + perPage - 1) / perPage
	if link := linkHeader(m.URL()+r.URL.Path, page, perPage, lastPage); link != "" {
		w.Header().Set("Link", link)
	}

	m.writeRateHeaders(w, true)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=60, s-maxage=60")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(repos)
}

func (m *MockGitHub) writeRateHeaders(w http.ResponseWriter, consume bool) {
	m.mu.Lock()
	if consume && m.rateRemaining > 0 {
		m.rateRemaining--
	}
	limit, remaining, reset := m.rateLimit, m.rateRemaining, m.rateReset
	m.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "core")
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func linkHeader(base string, page, perPage, lastPage int) string {
	if lastPage <= 1 {
		return ""
	}

	link := func(p int, rel string) string {
		return fmt.Sprintf(`<%s?page=%d&per_page=%d&type=public>; rel="%s"`, base, p, perPage, rel)
	}

	var parts []string
	if page > 1 {
		parts = append(parts, link(page-1, "prev"))
	}
	if page < lastPage {
		parts = append(parts, link(page+1, "next"), link(lastPage, "last"))
	}
	if page > 1 {
		parts = append(parts, link(1, "first"))
	}
	return strings.Join(parts, ", ")
}

// NewMockRepo builds the n-th (1-based) repository of org.
func NewMockRepo(org string, n int) MockRepo {
	name := fmt.Sprintf("repo-%03d", n)
	return MockRepo{
		ID:              int64(n),
		Name:            name,
		FullName:        org + "/" + name,
		Description:     fmt.Sprintf("Repository %d of %s", n, org),
		HTMLURL:         "https://github.com/" + org + "/" + name,
		Language:        "Go",
		StargazersCount: n * 3,
	}
}

// NewRateLimitedResponse creates a 403 response with an exhausted rate limit.
func NewRateLimitedResponse(reset time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "API rate limit exceeded for 127.0.0.1."}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "60",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     strconv.FormatInt(reset.Unix(), 10),
			"X-RateLimit-Resource":  "core",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 502 Bad Gateway response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       `{"message": "Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewForbiddenResponse creates a 403 response that is not rate limit related.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "Resource protected by organization SAML enforcement."}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "5000",
			"X-RateLimit-Remaining": "4990",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler creates a handler that responds with 304 when the
// request carries etag.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "private, max-age=60, s-maxage=60")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
