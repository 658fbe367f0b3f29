// Package main is the entry point for the orgrepos CLI.
//
// Usage:
//
//	orgrepos list --org golang            # Print public repositories
//	orgrepos browse --org golang          # Scroll through them in the terminal
//	orgrepos serve -c orgrepos.yaml       # Serve pages over HTTP
//	orgrepos validate -c orgrepos.yaml    # Validate configuration
//	orgrepos version                      # Show version info
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions are the flags shared by all subcommands.
type rootOptions struct {
	configPath string
	org        string
	logLevel   string
}

// load reads the config file when one is given, then applies environment
// variables and flags on top and validates the result.
func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	cfg.ApplyEnv(nil)
	if o.org != "" {
		cfg.Org = o.org
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadWithOrg is load for commands that list a single organization.
func (o *rootOptions) loadWithOrg() (*config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if cfg.Org == "" {
		return nil, errors.New("organization is required (--org or org: in the config file)")
	}
	return cfg, nil
}

// openClient creates the GitHub client, connected to Redis when configured.
// The returned cleanup closes the Redis connection.
func openClient(ctx context.Context, cfg *config.Config) (*client.Client, *redis.Client, func(), error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, nil, err
	}

	var redisClient *redis.Client
	if opts != nil {
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	gh, err := client.New(cfg.ClientConfig(redisClient))
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return gh, redisClient, cleanup, nil
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "orgrepos",
		Short: "List the public repositories of a GitHub organization",
		Long: `orgrepos lists the public repositories of a GitHub organization page by page.

Pages are requested as they are needed. Failed requests can be retried with
exponential backoff, responses are revalidated with ETags and rate limits are
respected before a request leaves the process.

Quick start:
  orgrepos list --org golang
  orgrepos browse --org golang

Example config:
  org: golang
  token: ${GITHUB_TOKEN:-}
  page_size: 30
  redis_url: redis://localhost:6379/0`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.org, "org", "", "organization to list (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")

	rootCmd.AddCommand(
		newListCmd(opts),
		newBrowseCmd(opts),
		newServeCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this orgrepos binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orgrepos %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error.
		os.Exit(1)
	}
}
