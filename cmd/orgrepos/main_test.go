package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/gh-org-repos/internal/testutil"
	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/rs/zerolog"
)

// execute runs the command tree with args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a config for org served by mock with instant retries.
func writeConfig(t *testing.T, mock *testutil.MockGitHub, org string) string {
	t.Helper()

	// Keep the environment from pointing the CLI at real services.
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ORGREPOS_LOG_LEVEL", "")

	content := "org: " + org + "\n" +
		"api_url: " + mock.URL() + "\n" +
		"user_agent: orgrepos-test/1.0\n" +
		"page_size: 10\n" +
		"backoff_base: 1ms\n" +
		"backoff_cap: 1ms\n" +
		"log_level: disabled\n"

	path := filepath.Join(t.TempDir(), "orgrepos.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func decodeList(t *testing.T, output string) repoJSON {
	t.Helper()

	var result repoJSON
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	return result
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(output, "orgrepos dev") {
		t.Errorf("output = %q, want version line", output)
	}
}

func TestValidateCommand(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	t.Run("valid", func(t *testing.T) {
		output, err := execute(t, "validate", "-c", writeConfig(t, mock, "golang"))
		if err != nil {
			t.Fatalf("validate error = %v", err)
		}
		for _, phrase := range []string{"Config is valid!", "Organization: golang", "Page size:    10", "Redis:        disabled"} {
			if !strings.Contains(output, phrase) {
				t.Errorf("output missing %q\nGot: %s", phrase, output)
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("REDIS_URL", "")
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		if err := os.WriteFile(path, []byte("page_size: 500\nmax_retries: -1\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := execute(t, "validate", "-c", path)
		if err == nil {
			t.Fatal("expected an error for an invalid config")
		}
		for _, field := range []string{"page_size", "max_retries"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q does not mention %s", err, field)
			}
		}
	})

	t.Run("requires config", func(t *testing.T) {
		if _, err := execute(t, "validate"); err == nil {
			t.Error("expected an error without --config")
		}
	})
}

func TestListCommand(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetOrg("acme", 25)

	t.Run("all pages as json", func(t *testing.T) {
		mock.Reset()
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}

		result := decodeList(t, output)
		if result.Count != 25 {
			t.Fatalf("count = %d, want 25", result.Count)
		}
		for i, repo := range result.Items {
			if repo.ID != int64(i+1) {
				t.Fatalf("items[%d].ID = %d, want %d", i, repo.ID, i+1)
			}
		}
		if got := mock.GetRequestCount(); got != 3 {
			t.Errorf("requests = %d, want 3", got)
		}
	})

	t.Run("max pages", func(t *testing.T) {
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json", "--max-pages", "2")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		if got := decodeList(t, output).Count; got != 20 {
			t.Errorf("count = %d, want 20", got)
		}
	})

	t.Run("table", func(t *testing.T) {
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "--max-pages", "1")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 11 {
			t.Fatalf("lines = %d, want header + 10 rows\n%s", len(lines), output)
		}
		if !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[1], "repo-001") {
			t.Errorf("unexpected table start:\n%s", output)
		}
	})

	t.Run("org flag overrides config", func(t *testing.T) {
		mock.SetOrg("other", 3)
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "--org", "other", "-o", "json")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		if got := decodeList(t, output).Count; got != 3 {
			t.Errorf("count = %d, want 3", got)
		}
	})

	t.Run("parallel", func(t *testing.T) {
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json", "--all")
		if err != nil {
			t.Fatalf("list --all error = %v", err)
		}
		if got := decodeList(t, output).Count; got != 25 {
			t.Errorf("count = %d, want 25", got)
		}
	})
}

func TestListCommand_Failures(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetOrg("acme", 25)

	t.Run("failed page stops the listing", func(t *testing.T) {
		mock.FailPage("acme", 2, 1)
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json")
		if err == nil || err.Error() != client.MessageUnavailable {
			t.Fatalf("error = %v, want %q", err, client.MessageUnavailable)
		}
		if got := decodeList(t, output).Count; got != 10 {
			t.Errorf("count = %d, want the 10 repositories of page 1", got)
		}
	})

	t.Run("retry recovers", func(t *testing.T) {
		mock.FailPage("acme", 2, 2)
		output, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json", "--retry", "3")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		if got := decodeList(t, output).Count; got != 25 {
			t.Errorf("count = %d, want 25", got)
		}
	})

	t.Run("retries run out", func(t *testing.T) {
		mock.FailPage("acme", 2, 10)
		defer mock.FailPage("acme", 2, 0)

		mock.Reset()
		_, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json", "--retry", "5")
		if err == nil {
			t.Fatal("expected an error")
		}
		// Page 1, the failed load and max_retries (3) retries.
		if got := mock.GetRequestCount(); got != 5 {
			t.Errorf("requests = %d, want 5", got)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		mock.FailPageStatus("acme", 2, 5, http.StatusForbidden)
		defer mock.FailPageStatus("acme", 2, 0, http.StatusForbidden)

		mock.Reset()
		_, err := execute(t, "list", "-c", writeConfig(t, mock, "acme"), "-o", "json", "--retry", "3")
		if err == nil || err.Error() != "GitHub API request failed (status 403)." {
			t.Fatalf("error = %v, want the 403 message", err)
		}
		// Page 1 and the failed page 2, no retries.
		if got := mock.GetRequestCount(); got != 2 {
			t.Errorf("requests = %d, want 2", got)
		}
	})

	t.Run("unknown org", func(t *testing.T) {
		_, err := execute(t, "list", "-c", writeConfig(t, mock, "missing"))
		if err == nil || !strings.Contains(err.Error(), `Organization "missing" not found.`) {
			t.Errorf("error = %v, want not found message", err)
		}
	})

	t.Run("requires org", func(t *testing.T) {
		t.Setenv("REDIS_URL", "")
		if _, err := execute(t, "list"); err == nil || !strings.Contains(err.Error(), "organization is required") {
			t.Errorf("error = %v, want missing org error", err)
		}
	})

	t.Run("bad output format", func(t *testing.T) {
		if _, err := execute(t, "list", "-o", "xml"); err == nil {
			t.Error("expected an error for -o xml")
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_WithoutRedis(t *testing.T) {
	w := httptest.NewRecorder()
	readyHandler(nil)(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func newTestMux(t *testing.T, mock *testutil.MockGitHub) *http.ServeMux {
	t.Helper()

	cfg := client.DefaultConfig(nil, "orgrepos-test/1.0")
	cfg.BaseURL = mock.URL()
	gh, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return newServeMux(gh, nil, 10, zerolog.Nop())
}

func TestReposEndpoint(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetOrg("acme", 25)
	mux := newTestMux(t, mock)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantKind   client.ErrorKind
		wantItems  int
		wantMore   bool
	}{
		{name: "first page", target: "/api/orgs/acme/repos", wantStatus: http.StatusOK, wantItems: 10, wantMore: true},
		{name: "last page", target: "/api/orgs/acme/repos?page=3", wantStatus: http.StatusOK, wantItems: 5},
		{name: "per page", target: "/api/orgs/acme/repos?per_page=25", wantStatus: http.StatusOK, wantItems: 25, wantMore: true},
		{name: "past the end", target: "/api/orgs/acme/repos?page=9", wantStatus: http.StatusOK, wantItems: 0},
		{name: "bad page", target: "/api/orgs/acme/repos?page=two", wantStatus: http.StatusBadRequest, wantKind: client.KindValidation},
		{name: "page zero", target: "/api/orgs/acme/repos?page=0", wantStatus: http.StatusBadRequest, wantKind: client.KindValidation},
		{name: "per page too large", target: "/api/orgs/acme/repos?per_page=101", wantStatus: http.StatusBadRequest, wantKind: client.KindValidation},
		{name: "unknown org", target: "/api/orgs/nobody/repos", wantStatus: http.StatusNotFound, wantKind: client.KindAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d\n%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantKind != "" {
				var body errorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("error body is not JSON: %v", err)
				}
				if body.Kind != tt.wantKind {
					t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
				}
				if body.Message == "" {
					t.Error("message is empty")
				}
				return
			}

			var body pageResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("page body is not JSON: %v", err)
			}
			if len(body.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(body.Items), tt.wantItems)
			}
			if body.HasMore != tt.wantMore {
				t.Errorf("has_more = %v, want %v", body.HasMore, tt.wantMore)
			}
		})
	}
}

func TestReposEndpoint_RateLimited(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mock.SetOrg("acme", 25)
	mock.SetRateLimit(60, 0, time.Now().Add(time.Hour))
	mux := newTestMux(t, mock)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orgs/acme/repos", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != client.KindRateLimit || body.Message != client.MessageRateLimit {
		t.Errorf("body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()
	mux := newTestMux(t, mock)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"pagination_items_loaded", "pagination_retries_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
