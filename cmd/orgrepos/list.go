package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/logging"
	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type listOptions struct {
	maxPages int
	retries  int
	all      bool
	output   string
}

func newListCmd(root *rootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the public repositories of an organization",
		Long: `Print the public repositories of an organization.

The first page is fetched up front, later pages are loaded one at a time as
the output reaches the end of what has been loaded. A failed page stops the
listing unless --retry allows retrying it with backoff.

With --all the pages are fetched in parallel instead, 100 repositories per
request.

Example:
  orgrepos list --org golang
  orgrepos list --org golang --max-pages 3 --retry 3
  orgrepos list --org golang --all --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().IntVar(&opts.retries, "retry", 0, "retries per failed page (capped by max_retries)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "fetch all pages in parallel")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func runList(cmd *cobra.Command, root *rootOptions, opts *listOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q (want table or json)", opts.output)
	}

	cfg, err := root.loadWithOrg()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LoggingConfig()).With().
		Str("component", "cli").
		Str("org", cfg.Org).
		Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gh, _, cleanup, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fetcher := client.NewOrgRepoFetcher(gh, cfg.Org)
	out := cmd.OutOrStdout()

	if opts.all {
		batch := cfg.BatchConfig()
		batch.MaxPages = opts.maxPages
		repos, fetchErr := pagination.NewBatchFetcher[client.Repository](fetcher, batch).FetchAll(ctx)
		if fetchErr != nil && len(repos) == 0 {
			return errors.New(pagination.UserMessage(fetchErr))
		}
		if err := writeRepos(out, opts.output, repos, true); err != nil {
			return err
		}
		if fetchErr != nil {
			return fmt.Errorf("incomplete listing: %s", pagination.UserMessage(fetchErr))
		}
		return nil
	}

	repos, listErr := walkPages(ctx, fetcher, cfg.PaginationConfig(), opts, &logger, func(rows []client.Repository, header bool) error {
		if opts.output == "json" {
			return nil
		}
		return writeRepos(out, "table", rows, header)
	})
	if opts.output == "json" {
		if err := writeRepos(out, "json", repos, false); err != nil {
			return err
		}
	}
	return listErr
}

// walkPages bootstraps the first page as the controller's initial snapshot
// and loads further pages each time emit has written everything loaded so far.
// It returns all repositories loaded, together with the error that stopped
// the walk.
func walkPages(
	ctx context.Context,
	fetcher pagination.PageFetcher[client.Repository],
	pcfg pagination.Config,
	opts *listOptions,
	logger *zerolog.Logger,
	emit func(rows []client.Repository, header bool) error,
) ([]client.Repository, error) {
	first, err := fetcher.FetchPage(ctx, 1, pcfg.PageSize)
	if err != nil {
		return nil, errors.New(pagination.UserMessage(err))
	}

	pcfg.Logger = logger
	controller, err := pagination.NewController[client.Repository](fetcher, pcfg, first.Items)
	if err != nil {
		return nil, err
	}

	// Emitted rows are the reader's viewport: everything printed is visible,
	// so the boundary is reached once all loaded rows are out.
	detector := pagination.BoundaryDetector{Margin: pagination.DefaultBoundaryMargin}
	exhausted := !first.HasMore
	printed := 0

	for {
		state := controller.State()
		if printed < len(state.Items) {
			if err := emit(state.Items[printed:], printed == 0); err != nil {
				return state.Items, err
			}
			printed = len(state.Items)
		}

		if exhausted || state.Exhausted {
			return state.Items, nil
		}
		if opts.maxPages > 0 && state.Cursor >= opts.maxPages {
			logger.Debug().Int("pages", state.Cursor).Msg("Page limit reached")
			return state.Items, nil
		}

		if state.LastError != "" {
			if !retryable(state.Cause) || state.RetryCount >= opts.retries || !state.CanRetry() {
				return state.Items, errors.New(state.LastError)
			}
			controller.Retry(ctx)
			continue
		}

		if !detector.Observe(ctx, controller, printed-1, printed) {
			return state.Items, nil
		}
	}
}

// retryable reports whether repeating the failed request may succeed.
// Validation errors and client errors such as 404 fail the same way again.
func retryable(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

type repoJSON struct {
	Items []client.Repository `json:"items"`
	Count int                 `json:"count"`
}

func writeRepos(out io.Writer, format string, repos []client.Repository, header bool) error {
	if format == "json" {
		if repos == nil {
			repos = []client.Repository{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(repoJSON{Items: repos, Count: len(repos)})
	}

	if header {
		if _, err := fmt.Fprintf(out, "%-40s %7s %-14s %s\n", "NAME", "STARS", "LANGUAGE", "DESCRIPTION"); err != nil {
			return err
		}
	}
	for _, repo := range repos {
		name := repo.Name
		if repo.Archived {
			name += " (archived)"
		}
		_, err := fmt.Fprintf(out, "%-40s %7d %-14s %s\n",
			ansi.Truncate(name, 40, "…"),
			repo.StargazersCount,
			ansi.Truncate(repo.Language, 14, "…"),
			ansi.Truncate(repo.Description, 60, "…"),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
