package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "response with validators",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Cache-Control": []string{"public, max-age=60, s-maxage=60"},
					"Last-Modified": []string{time.Now().Add(-1 * time.Hour).Format(http.TimeFormat)},
					"Etag":          []string{`W/"abc123"`},
					"Content-Type":  []string{"application/json; charset=utf-8"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`[{"id": 1}]`))),
			},
		},
		{
			name: "response without caching headers",
			resp: &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader([]byte(`[]`))),
			},
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("restored body = %q, want %q", body, entry.Data)
			}
			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}
			if entry.ETag != tt.resp.Header.Get("ETag") {
				t.Errorf("ETag = %v, want %v", entry.ETag, tt.resp.Header.Get("ETag"))
			}
			if entry.Expires.IsZero() {
				t.Error("Expires time was not set")
			}
		})
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "max-age",
			headers: http.Header{"Cache-Control": []string{"private, max-age=60, s-maxage=60"}},
			want:    now.Add(60 * time.Second),
		},
		{
			name: "max-age wins over expires",
			headers: http.Header{
				"Cache-Control": []string{"max-age=30"},
				"Expires":       []string{now.Add(time.Hour).Format(http.TimeFormat)},
			},
			want: now.Add(30 * time.Second),
		},
		{
			name:    "no-cache",
			headers: http.Header{"Cache-Control": []string{"no-cache"}},
			want:    now,
		},
		{
			name:    "expires header",
			headers: http.Header{"Expires": []string{now.Add(time.Hour).Format(http.TimeFormat)}},
			want:    now.Add(time.Hour),
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{now.Add(-time.Hour).Format(http.TimeFormat)}},
			want:    now,
		},
		{
			name:    "invalid expires",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "no headers",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExpires(tt.headers)
			if diff := got.Sub(tt.want); diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("ParseExpires() = %v, want approximately %v (diff: %v)", got, tt.want, diff)
			}
		})
	}
}

func TestCacheEntry_Freshness(t *testing.T) {
	fresh := &CacheEntry{Expires: time.Now().Add(5 * time.Minute)}
	if fresh.IsExpired() {
		t.Error("fresh entry reported expired")
	}
	if ttl := fresh.TTL(); ttl < 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL() = %v, want about 5m", ttl)
	}

	stale := &CacheEntry{Expires: time.Now().Add(-time.Second)}
	if !stale.IsExpired() {
		t.Error("stale entry reported fresh")
	}
	if stale.TTL() != 0 {
		t.Errorf("TTL() = %v, want 0", stale.TTL())
	}
}

func TestResponseToEntry_DropsPerExchangeHeaders(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Link":                  []string{`<https://api.github.com/orgs/x/repos?page=2>; rel="next"`},
			"Etag":                  []string{`W/"abc"`},
			"X-Ratelimit-Remaining": []string{"42"},
			"X-Ratelimit-Reset":     []string{"1700000000"},
			"X-Github-Request-Id":   []string{"C0DE:1234"},
			"Date":                  []string{time.Now().Format(http.TimeFormat)},
		},
		Body: io.NopCloser(bytes.NewReader([]byte(`[]`))),
	}

	entry, err := ResponseToEntry(resp)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	for _, name := range []string{"X-RateLimit-Remaining", "X-RateLimit-Reset", "X-GitHub-Request-Id", "Date"} {
		if entry.Headers.Get(name) != "" {
			t.Errorf("entry kept %s", name)
		}
	}
	if entry.Headers.Get("Link") == "" || entry.Headers.Get("ETag") == "" {
		t.Error("entry lost Link or ETag")
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "42" {
		t.Error("ResponseToEntry modified the response headers")
	}

	replayed := EntryToResponse(entry)
	defer replayed.Body.Close()
	if replayed.Header.Get("X-RateLimit-Remaining") != "" {
		t.Error("cached response replays a rate limit window")
	}
}

func TestCacheEntry_Revalidated(t *testing.T) {
	entry := &CacheEntry{ETag: `W/"v1"`, Expires: time.Now().Add(-time.Minute)}
	if !entry.HasValidators() {
		t.Fatal("HasValidators() = false with an ETag")
	}

	entry.Revalidated(time.Now().Add(time.Minute))

	if entry.IsExpired() {
		t.Error("entry still expired after Revalidated")
	}
	if entry.RevalidatedAt.IsZero() {
		t.Error("RevalidatedAt not set")
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte(`[{"id": 7}]`),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Link": []string{`<https://api.github.com/orgs/x/repos?page=2>; rel="next"`}},
	}

	resp := EntryToResponse(entry)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Error("X-Cache header not set")
	}
	if resp.Header.Get("Link") == "" {
		t.Error("cached headers not restored")
	}
	if entry.Headers.Get("X-Cache") != "" {
		t.Error("EntryToResponse mutated the entry headers")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `[{"id": 7}]` {
		t.Errorf("body = %q", body)
	}
}

func TestShouldMakeConditionalRequest(t *testing.T) {
	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{name: "nil entry", entry: nil, want: false},
		{name: "ETag", entry: &CacheEntry{ETag: `"abc123"`}, want: true},
		{name: "Last-Modified", entry: &CacheEntry{LastModified: time.Now()}, want: true},
		{name: "no validators", entry: &CacheEntry{Data: []byte("data")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.want {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	lastModified := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		entry      *CacheEntry
		wantHeader string
		wantValue  string
	}{
		{
			name:       "If-None-Match with ETag",
			entry:      &CacheEntry{ETag: `"abc123"`},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:       "If-Modified-Since with Last-Modified",
			entry:      &CacheEntry{LastModified: lastModified},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name:       "prefer ETag over Last-Modified",
			entry:      &CacheEntry{ETag: `"abc123"`, LastModified: lastModified},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "https://api.github.com/orgs/golang/repos", nil)
			AddConditionalHeaders(req, tt.entry)

			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("Header %s = %v, want %v", tt.wantHeader, got, tt.wantValue)
			}
		})
	}

	// nil inputs must not panic
	AddConditionalHeaders(nil, &CacheEntry{ETag: "test"})
	AddConditionalHeaders(&http.Request{}, nil)
}
