package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/gh-org-repos/internal/tui"
	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/logging"
	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newBrowseCmd(root *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Scroll through the public repositories of an organization",
		Long: `Open an interactive list of the public repositories of an organization.

Scrolling close to the end of the list loads the next page. When a page fails
the error is shown in the footer: press r to retry with backoff, R to start
over from the first page, q to quit.

Logs would corrupt the screen, so they are discarded unless --log-file is set.

Example:
  orgrepos browse --org golang
  orgrepos browse --org golang --log-file orgrepos.log --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadWithOrg()
			if err != nil {
				return err
			}

			logCfg := cfg.LoggingConfig()
			if logFile == "" {
				logCfg.Level = logging.LevelDisabled
			} else {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				logCfg.Output = f
				logCfg.Pretty = false
			}
			logger := logging.Setup(logCfg).With().
				Str("component", "browse").
				Str("org", cfg.Org).
				Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			gh, _, cleanup, err := openClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			fetcher := client.NewOrgRepoFetcher(gh, cfg.Org)
			pcfg := cfg.PaginationConfig()
			pcfg.Logger = &logger

			first, err := fetcher.FetchPage(ctx, 1, pcfg.PageSize)
			if err != nil {
				return errors.New(pagination.UserMessage(err))
			}
			controller, err := pagination.NewController[client.Repository](fetcher, pcfg, first.Items)
			if err != nil {
				return err
			}

			logger.Info().Int("initial_items", len(first.Items)).Msg("Starting browser")

			model := tui.NewModel(ctx, controller, cfg.Org)
			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("browser: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}
