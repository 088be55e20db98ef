// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"

	"github.com/Bederf/aimthelaw-sub002/internal/action"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the full client configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Actions ActionsConfig `toml:"actions"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// BackendConfig configures the API client.
type BackendConfig struct {
	// URL is the backend base URL.
	URL string `toml:"url" env:"AIMTHELAW_BACKEND_URL"`

	// APIKey authenticates requests when set.
	APIKey string `toml:"api_key" env:"AIMTHELAW_API_KEY"`

	// Model is the default model name sent with queries.
	Model string `toml:"model" env:"AIMTHELAW_MODEL"`

	// TimeoutSecs applies to most requests; LongTimeoutSecs to the slow
	// paths (conversation creation, document processing).
	TimeoutSecs     int `toml:"timeout_secs" env:"AIMTHELAW_TIMEOUT_SECS"`
	LongTimeoutSecs int `toml:"long_timeout_secs" env:"AIMTHELAW_LONG_TIMEOUT_SECS"`

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int `toml:"max_retries" env:"AIMTHELAW_MAX_RETRIES"`
}

// ActionsConfig configures quick-action session timing.
type ActionsConfig struct {
	StaleAfterSecs   int `toml:"stale_after_secs" env:"AIMTHELAW_ACTION_STALE_SECS"`
	BeginStaleSecs   int `toml:"begin_stale_secs" env:"AIMTHELAW_ACTION_BEGIN_STALE_SECS"`
	ReleaseDelaySecs int `toml:"release_delay_secs" env:"AIMTHELAW_ACTION_RELEASE_SECS"`
}

// StorageConfig configures the durable state tiers.
type StorageConfig struct {
	// StatePath is the sqlite file backing the durable state tier.
	StatePath string `toml:"state_path" env:"AIMTHELAW_STATE_PATH"`

	// MirrorDir holds the local conversation mirror.
	MirrorDir string `toml:"mirror_dir" env:"AIMTHELAW_MIRROR_DIR"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `toml:"level" env:"AIMTHELAW_LOG_LEVEL"`

	// Format is "json" or "console".
	Format string `toml:"format" env:"AIMTHELAW_LOG_FORMAT"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the baseline configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".aimthelaw")
	return &Config{
		Backend: BackendConfig{
			URL:             "http://localhost:8000",
			TimeoutSecs:     30,
			LongTimeoutSecs: 60,
			MaxRetries:      3,
		},
		Actions: ActionsConfig{
			StaleAfterSecs:   150,
			BeginStaleSecs:   30,
			ReleaseDelaySecs: 3,
		},
		Storage: StorageConfig{
			StatePath: filepath.Join(base, "state.db"),
			MirrorDir: filepath.Join(base, "conversations"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aimthelaw", "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from path, applies environment overrides and
// normalizes the result. A missing file is not an error: defaults plus
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration that cannot work at all. Soft problems are
// handled by normalize instead.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q, want json or console", c.Logging.Format)
	}
	return nil
}

// normalize clamps out-of-range values to safe bounds.
func (c *Config) normalize() {
	clampInt(&c.Backend.TimeoutSecs, 1, 300, 30)
	clampInt(&c.Backend.LongTimeoutSecs, c.Backend.TimeoutSecs, 600, 60)
	clampInt(&c.Backend.MaxRetries, 0, 10, 3)
	clampInt(&c.Actions.StaleAfterSecs, 30, 900, 150)
	clampInt(&c.Actions.BeginStaleSecs, 5, c.Actions.StaleAfterSecs, 30)
	clampInt(&c.Actions.ReleaseDelaySecs, 0, 30, 3)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func clampInt(v *int, min, max, fallback int) {
	if *v == 0 {
		*v = fallback
	}
	if *v < min {
		*v = min
	}
	if *v > max {
		*v = max
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Timeout returns the standard request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// LongTimeout returns the slow-path request timeout.
func (b BackendConfig) LongTimeout() time.Duration {
	return time.Duration(b.LongTimeoutSecs) * time.Second
}

// Coordinator converts the action timing into a coordinator config.
func (a ActionsConfig) Coordinator() action.CoordinatorConfig {
	return action.CoordinatorConfig{
		StaleAfter:   time.Duration(a.StaleAfterSecs) * time.Second,
		BeginStale:   time.Duration(a.BeginStaleSecs) * time.Second,
		ReleaseDelay: time.Duration(a.ReleaseDelaySecs) * time.Second,
	}
}
