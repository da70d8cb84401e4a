package store

import "time"

const (
	// DefaultPrefix namespaces the keys a store writes.
	DefaultPrefix = "entitycache"
	// DefaultQueryTimeout bounds every round trip to the backend.
	DefaultQueryTimeout = 5 * time.Second
)

type config struct {
	prefix       string
	queryTimeout time.Duration
}

// Option configures a store.
type Option func(*config)

// WithPrefix sets the namespace of the Redis key or the SQLite partition
// the store writes to.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithQueryTimeout bounds every backend operation. Non-positive values keep
// the default.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

func applyOptions(opts []Option) config {
	cfg := config{
		prefix:       DefaultPrefix,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
