// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers .env, an optional YAML file and B24STATS_* env vars on top.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WebhookURL is the Bitrix24 incoming webhook, e.g.
	// "https://portal.bitrix24.ru/rest/1/secret/". Empty leaves the
	// service running but unable to compute reports.
	WebhookURL string `koanf:"webhook_url"`

	// RequestTimeoutMS bounds a single HTTP call to the portal.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// FetchTimeoutMS bounds the whole fetch sequence of one report.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// MaxPages caps how many result pages one list call may follow.
	MaxPages int `koanf:"max_pages"`

	// ParallelFetch issues employee and period fetches concurrently.
	ParallelFetch bool `koanf:"parallel_fetch"`

	// CompareByDefault is used when a statistics request omits "compare".
	CompareByDefault bool `koanf:"compare_by_default"`

	// CORSAllowedOrigins lists origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		RequestTimeoutMS:   30_000,
		FetchTimeoutMS:     60_000,
		MaxPages:           200,
		ParallelFetch:      false,
		CompareByDefault:   true,
		CORSAllowedOrigins: []string{"*"},
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// Validate checks c and normalises the webhook URL to end with "/".
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.FetchTimeoutMS <= 0 {
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("%w: max_pages must be positive", ErrInvalidConfig)
	}

	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	if c.WebhookURL == "" {
		return nil
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("%w: webhook_url: %w", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook_url must be an absolute http(s) url", ErrInvalidConfig)
	}
	if !strings.HasSuffix(c.WebhookURL, "/") {
		c.WebhookURL += "/"
	}
	return nil
}
