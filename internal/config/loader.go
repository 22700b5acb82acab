package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/dasha/internal/domain/dasha"
)

const (
	envPrefix = "DASHA_"
	envFile   = "DASHA_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if DASHA_CONFIG is set
//  3. env (prefix DASHA_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(envFile))
}

// LoadFile is Load with an explicit file path; an empty path skips the file
// layer.
func LoadFile(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DASHA_DEFAULT_SYSTEM -> default_system; keys stay flat.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file name is not a setting.
	k.Delete("config")

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !oneOf(c.LogLevel, "", "debug", "info", "warn", "warning", "error"):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case !oneOf(c.LogFormat, "", "text", "json"):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.DefaultSystem) == "":
		return fmt.Errorf("%w: default_system must not be empty", ErrInvalidConfig)
	case c.MaxDepth < 1 || c.MaxDepth > dasha.MaxDepth:
		return fmt.Errorf("%w: max_depth %d outside [1,%d]", ErrInvalidConfig, c.MaxDepth, dasha.MaxDepth)
	case c.DefaultDepth < 1 || c.DefaultDepth > c.MaxDepth:
		return fmt.Errorf("%w: default_depth %d outside [1,%d]", ErrInvalidConfig, c.DefaultDepth, c.MaxDepth)
	case c.MaxLookahead < 0:
		return fmt.Errorf("%w: max_lookahead must not be negative", ErrInvalidConfig)
	case c.DefaultLookahead < 0 || c.DefaultLookahead > c.MaxLookahead:
		return fmt.Errorf("%w: default_lookahead %d outside [0,%d]", ErrInvalidConfig, c.DefaultLookahead, c.MaxLookahead)
	case c.MaxNodes < 1:
		return fmt.Errorf("%w: max_nodes must be positive", ErrInvalidConfig)
	case c.BatchWorkers < 1:
		return fmt.Errorf("%w: batch_workers must be positive", ErrInvalidConfig)
	case c.BatchQueueSize < 1:
		return fmt.Errorf("%w: batch_queue_size must be positive", ErrInvalidConfig)
	case c.MaxBatchItems < 1:
		return fmt.Errorf("%w: max_batch_items must be positive", ErrInvalidConfig)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
