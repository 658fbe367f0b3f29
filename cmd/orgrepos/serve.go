package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/logging"
	"github.com/Sternrassler/gh-org-repos/pkg/metrics"
	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve repository pages over HTTP",
		Long: `Serve pages of organization repositories over HTTP.

Endpoints:
  GET /health                          liveness
  GET /ready                           Redis reachable (when configured)
  GET /metrics                         Prometheus metrics
  GET /api/orgs/{org}/repos?page=&per_page=

Pages come back as {"items": [...], "has_more": bool}. Failures come back as
{"kind": "...", "message": "..."} with a matching HTTP status.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  orgrepos serve -c orgrepos.yaml
  orgrepos serve --listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger := logging.Setup(cfg.LoggingConfig()).With().Str("component", "serve").Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gh, redisClient, cleanup, err := openClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			server := &http.Server{
				Addr:              cfg.Listen,
				Handler:           newServeMux(gh, redisClient, cfg.PageSize, logger),
				ReadHeaderTimeout: 5 * time.Second,
			}

			logger.Info().
				Str("listen", cfg.Listen).
				Str("api_url", cfg.APIURL).
				Bool("redis", redisClient != nil).
				Msg("Starting server")

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.ListenAndServe()
			}()

			select {
			case err := <-errChan:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Dur("timeout", shutdownTimeout).Msg("Shutdown timed out")
				return nil
			}
			if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info().Msg("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

// newServeMux wires the HTTP endpoints. redisClient may be nil.
func newServeMux(gh *client.Client, redisClient *redis.Client, pageSize int, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(redisClient))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/orgs/{org}/repos", reposHandler(gh, pageSize, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

type pageResponse struct {
	Items    []client.Repository `json:"items"`
	HasMore  bool                `json:"has_more"`
	Page     int                 `json:"page"`
	LastPage int                 `json:"last_page,omitempty"`
}

type errorResponse struct {
	Kind    client.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

func reposHandler(gh *client.Client, pageSize int, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org := r.PathValue("org")

		page, ok := queryInt(r, "page", 1)
		if !ok {
			writeError(w, logger, &client.APIError{Kind: client.KindValidation, Message: "page must be an integer"})
			return
		}
		perPage, ok := queryInt(r, "per_page", pageSize)
		if !ok {
			writeError(w, logger, &client.APIError{Kind: client.KindValidation, Message: "per_page must be an integer"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		result, err := gh.ListOrgRepos(ctx, org, page, perPage)
		if err != nil {
			writeError(w, logger.With().Str("org", org).Int("page", page).Logger(), err)
			return
		}

		items := result.Items
		if items == nil {
			items = []client.Repository{}
		}
		writeJSON(w, logger, http.StatusOK, pageResponse{
			Items:    items,
			HasMore:  result.HasMore,
			Page:     page,
			LastPage: result.LastPage,
		})
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// statusFor maps an error kind to the HTTP status returned to callers.
func statusFor(err error) int {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}

	switch apiErr.Kind {
	case client.KindValidation:
		return http.StatusBadRequest
	case client.KindRateLimit:
		return http.StatusTooManyRequests
	case client.KindNetwork:
		return http.StatusBadGateway
	case client.KindAPI:
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	kind := client.KindOf(err)

	logger.Warn().Err(err).Str("error_kind", string(kind)).Int("status", status).Msg("Request failed")

	writeJSON(w, logger, status, errorResponse{
		Kind:    kind,
		Message: pagination.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}
