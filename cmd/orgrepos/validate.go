package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate an orgrepos configuration file without contacting GitHub.

This command parses the YAML, expands environment variables, applies
GITHUB_TOKEN, REDIS_URL and ORGREPOS_LOG_LEVEL and validates all fields.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  orgrepos validate -c orgrepos.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath == "" {
				return errors.New("--config is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			org := cfg.Org
			if org == "" {
				org = "(none, pass --org)"
			}
			redisState := "disabled"
			if cfg.RedisURL != "" {
				redisState = "enabled"
			}
			token := "not set (60 requests/hour)"
			if cfg.Token != "" {
				token = "set"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config is valid!\n")
			fmt.Fprintf(out, "  Organization: %s\n", org)
			fmt.Fprintf(out, "  API URL:      %s\n", cfg.APIURL)
			fmt.Fprintf(out, "  Token:        %s\n", token)
			fmt.Fprintf(out, "  Page size:    %d\n", cfg.PageSize)
			fmt.Fprintf(out, "  Max retries:  %d (backoff %s up to %s)\n",
				cfg.MaxRetries, cfg.BackoffBase.Duration(), cfg.BackoffCap.Duration())
			fmt.Fprintf(out, "  Redis:        %s\n", redisState)
			return nil
		},
	}
}
