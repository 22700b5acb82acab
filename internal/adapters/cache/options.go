package cache

type config struct {
	maxSize int
}

// Option applies a configuration option to the cache.
type Option func(*config)

// WithMaxSize sets the maximum number of entries kept in memory.
// A value of zero or less disables caching.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		c.maxSize = maxSize
	}
}
