// Package config defines service configuration and its layered loading.
//
// Precedence (low -> high): defaults from New, an optional YAML file named by
// DASHA_CONFIG, then DASHA_* environment variables.
package config

import (
	"runtime"
	"time"

	"github.com/okian/dasha/internal/domain/dasha"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// DefaultSystem is used when a request names no system.
	DefaultSystem string `koanf:"default_system"`

	// DefaultDepth and MaxDepth bound the subdivision depth of a request.
	DefaultDepth int `koanf:"default_depth"`
	MaxDepth     int `koanf:"max_depth"`

	// DefaultLookahead and MaxLookahead bound the extra top-level periods.
	DefaultLookahead int `koanf:"default_lookahead"`
	MaxLookahead     int `koanf:"max_lookahead"`

	// MaxNodes caps the periods one timeline may hold before pruning,
	// (lookahead+1) times the nodes of one fully subdivided tree.
	MaxNodes int `koanf:"max_nodes"`

	// BatchWorkers and BatchQueueSize size the batch worker pool.
	BatchWorkers   int `koanf:"batch_workers"`
	BatchQueueSize int `koanf:"batch_queue_size"`

	// MaxBatchItems caps POST /timelines.
	MaxBatchItems int `koanf:"max_batch_items"`

	// CacheSize bounds the computed-timeline cache; 0 disables it.
	CacheSize int `koanf:"cache_size"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// EphemerisPath and EphemerisMode are handed to the longitude resolver
	// with every query. They only take effect when the embedding program
	// supplies a resolver through service.WithResolver; the dasha binary has none
	// and answers location-only requests with missing_longitude.
	EphemerisPath string `koanf:"ephemeris_path"`
	EphemerisMode string `koanf:"ephemeris_mode"`

	// Systems are period systems registered next to the built-ins.
	Systems []dasha.Definition `koanf:"systems"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		ShutdownTimeout:  10 * time.Second,
		DefaultSystem:    "vimshottari",
		DefaultDepth:     3,
		MaxDepth:         dasha.MaxDepth,
		DefaultLookahead: 8,
		MaxLookahead:     8,
		MaxNodes:         10000,
		BatchWorkers:     runtime.NumCPU(),
		BatchQueueSize:   256,
		MaxBatchItems:    100,
		CacheSize:        1024,
	}
}
