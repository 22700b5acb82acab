package service

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/dasha/internal/config"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/ephemeris"
	"github.com/okian/dasha/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSystems registers definitions next to the built-in systems.
func WithSystems(defs ...dasha.Definition) Option {
	return func(s *Service) {
		s.extra = append(s.extra, defs...)
	}
}

// WithDefaultSystem sets the system used when a request names none.
func WithDefaultSystem(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultSystem = name
		}
	}
}

// WithDepth sets the default and maximum subdivision depth.
func WithDepth(def, limit int) Option {
	return func(s *Service) {
		if limit >= 1 && limit <= dasha.MaxDepth && def >= 1 && def <= limit {
			s.defaultDepth, s.maxDepth = def, limit
		}
	}
}

// WithLookahead sets the default and maximum lookahead.
func WithLookahead(def, limit int) Option {
	return func(s *Service) {
		if limit >= 0 && def >= 0 && def <= limit {
			s.defaultLookahead, s.maxLookahead = def, limit
		}
	}
}

// WithMaxNodes caps the periods one timeline may hold before pruning.
func WithMaxNodes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxNodes = n
		}
	}
}

// WithBatchWorkers sets the number of batch workers.
func WithBatchWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.batchWorkers = count
		}
	}
}

// WithBatchQueueSize bounds the batch queue.
func WithBatchQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchQueueSize = size
		}
	}
}

// WithMaxBatchItems caps the number of requests in one batch.
func WithMaxBatchItems(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchItems = n
		}
	}
}

// WithResolver sets the longitude resolver for requests that give a
// location instead of a longitude.
func WithResolver(r ephemeris.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithEphemerisSettings sets the settings passed with every resolver query.
func WithEphemerisSettings(settings ephemeris.Settings) Option {
	return func(s *Service) {
		s.settings = settings
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithTracer sets the tracer wrapping every computation.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithCacheSize bounds the computed-timeline cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.cacheSize = n
		}
	}
}

// FromConfig translates loaded configuration into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithSystems(cfg.Systems...),
		WithDefaultSystem(cfg.DefaultSystem),
		WithDepth(cfg.DefaultDepth, cfg.MaxDepth),
		WithLookahead(cfg.DefaultLookahead, cfg.MaxLookahead),
		WithMaxNodes(cfg.MaxNodes),
		WithBatchWorkers(cfg.BatchWorkers),
		WithBatchQueueSize(cfg.BatchQueueSize),
		WithMaxBatchItems(cfg.MaxBatchItems),
		WithCacheSize(cfg.CacheSize),
		WithEphemerisSettings(ephemeris.Settings{Path: cfg.EphemerisPath, Mode: cfg.EphemerisMode}),
	}
}
