package worker

import (
	"time"

	"github.com/okian/dasha/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name for identification and logging.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(log logger.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithQueueSize bounds the number of tasks waiting for a worker.
func WithQueueSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithMetricsInterval sets how often queue gauges are sampled.
func WithMetricsInterval(interval time.Duration) Option {
	return func(p *Pool) {
		if interval > 0 {
			p.metricsInterval = interval
		}
	}
}
