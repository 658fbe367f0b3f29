// Package config loads the orgrepos YAML configuration file.
//
// Example configuration:
//
//	org: golang
//	token: ${GITHUB_TOKEN:-}
//	user_agent: orgrepos/1.0 (ops@example.com)
//	timeout: 10s
//
//	page_size: 10
//	minimum_item_floor: 30
//	max_retries: 3
//	backoff_base: 1s
//	backoff_cap: 10s
//
//	redis_url: ${REDIS_URL:-}
//	listen: :8080
//	log_level: info
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/logging"
	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent identifies orgrepos to GitHub when none is configured.
const DefaultUserAgent = "orgrepos/1.0 (+https://github.com/Sternrassler/gh-org-repos)"

// Environment variables that override the file.
const (
	EnvToken    = "GITHUB_TOKEN"
	EnvRedisURL = "REDIS_URL"
	EnvLogLevel = "ORGREPOS_LOG_LEVEL"
)

// Config is the root configuration structure for orgrepos.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Org is the organization whose public repositories are listed.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Org string `yaml:"org"`

	// APIURL is the GitHub REST API base URL. Defaults to https://api.github.com.
	APIURL string `yaml:"api_url"`

	// Token is an optional GitHub token. Supports environment variable substitution.
	Token string `yaml:"token"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// PageSize is the number of repositories per page (1-100). Defaults to 10.
	PageSize int `yaml:"page_size"`

	// MinimumItemFloor is the item count after which a short page ends the
	// listing. Defaults to 30.
	MinimumItemFloor int `yaml:"minimum_item_floor"`

	// MaxRetries bounds manual retries between successful loads. Defaults to 3.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the delay before the first retry. Defaults to 1s.
	BackoffBase Duration `yaml:"backoff_base"`

	// BackoffCap caps every retry delay. Defaults to 10s.
	BackoffCap Duration `yaml:"backoff_cap"`

	// MaxConcurrency bounds parallel page fetches of `list --all`. Defaults to 4.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RedisURL enables the shared response cache and rate limit state,
	// e.g. redis://localhost:6379/0. Empty disables Redis.
	RedisURL string `yaml:"redis_url"`

	// Listen is the address of `orgrepos serve`. Defaults to :8080.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error, disabled. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// LogPretty switches from JSON to console log output.
	LogPretty bool `yaml:"log_pretty"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, expands environment variables and
// applies defaults. It does not validate; call Validate once overrides
// are applied.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = client.DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(10 * time.Second)
	}

	defaults := pagination.DefaultConfig()
	if c.PageSize == 0 {
		c.PageSize = defaults.PageSize
	}
	if c.MinimumItemFloor == 0 {
		c.MinimumItemFloor = defaults.MinimumItemFloor
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = Duration(defaults.Backoff.InitialBackoff)
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = Duration(defaults.Backoff.MaxBackoff)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = pagination.DefaultBatchConfig().MaxConcurrency
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = string(logging.LevelInfo)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} references in s.
// A reference to an unset variable without a default is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (c *Config) expandEnv() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"org", &c.Org},
		{"api_url", &c.APIURL},
		{"token", &c.Token},
		{"user_agent", &c.UserAgent},
		{"redis_url", &c.RedisURL},
		{"listen", &c.Listen},
	}

	for _, f := range fields {
		expanded, err := expandEnvVars(*f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = expanded
	}
	return nil
}

// ApplyEnv overrides the token, Redis URL and log level from GITHUB_TOKEN,
// REDIS_URL and ORGREPOS_LOG_LEVEL when they are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Token = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.RedisURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	if c.Timeout.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if c.PageSize < 1 || c.PageSize > client.MaxPerPage {
		errs = append(errs, fmt.Errorf("page_size must be between 1 and %d (got %d)", client.MaxPerPage, c.PageSize))
	}
	if c.MinimumItemFloor < 0 {
		errs = append(errs, fmt.Errorf("minimum_item_floor must be >= 0 (got %d)", c.MinimumItemFloor))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.BackoffBase.Duration() < 0 || c.BackoffCap.Duration() < 0 {
		errs = append(errs, fmt.Errorf("backoff durations must not be negative"))
	}
	if c.BackoffCap.Duration() < c.BackoffBase.Duration() {
		errs = append(errs, fmt.Errorf("backoff_cap (%s) must be >= backoff_base (%s)", c.BackoffCap.Duration(), c.BackoffBase.Duration()))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be >= 1 (got %d)", c.MaxConcurrency))
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("redis_url: %w", err))
		}
	}
	if err := logging.ValidateLevel(logging.LogLevel(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// PaginationConfig returns the controller configuration.
func (c *Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		PageSize:         c.PageSize,
		MinimumItemFloor: c.MinimumItemFloor,
		MaxRetries:       c.MaxRetries,
		Backoff: pagination.BackoffConfig{
			InitialBackoff:    c.BackoffBase.Duration(),
			MaxBackoff:        c.BackoffCap.Duration(),
			BackoffMultiplier: 2.0,
		},
	}
}

// BatchConfig returns the batch fetcher configuration.
func (c *Config) BatchConfig() pagination.BatchConfig {
	return pagination.BatchConfig{
		MaxConcurrency: c.MaxConcurrency,
		PerPage:        client.MaxPerPage,
		Timeout:        c.Timeout.Duration(),
	}
}

// ClientConfig returns the GitHub client configuration. redisClient may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(redisClient, c.UserAgent)
	cfg.BaseURL = c.APIURL
	cfg.Token = c.Token
	cfg.Timeout = c.Timeout.Duration()
	return cfg
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// RedisOptions parses RedisURL. It returns nil when Redis is disabled.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}
