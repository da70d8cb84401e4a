package cache

import (
	"github.com/agentuity/go-entitycache/logger"
	"github.com/google/uuid"
)

// DefaultEvictionFactor is the share of the population Cleanup asks the
// replacement policy to evict: a cleanup of 10 entities requests 8 victims
// and leaves 2, item policy vetoes aside.
const DefaultEvictionFactor = 0.8

// config holds the resolved configuration for an EntityCache.
type config struct {
	name           string
	evictionFactor float64
	defaultPolicy  ItemPolicy
	logger         logger.Logger
}

// Option configures an EntityCache.
type Option func(*config)

func defaultConfig() config {
	return config{
		name:           "cache-" + uuid.NewString()[:8],
		evictionFactor: DefaultEvictionFactor,
		logger:         logger.NewConsoleLogger(logger.LevelNone),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithName sets the name the cache logs under. Defaults to a random name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithEvictionFactor sets the share of the population Cleanup asks the
// replacement policy to evict. Must be within [0, 1]. Defaults to
// DefaultEvictionFactor.
func WithEvictionFactor(f float64) Option {
	return func(c *config) { c.evictionFactor = f }
}

// WithDefaultItemPolicy sets the policy recorded for entities added without
// an explicit one. The same instance is shared by every such entity.
func WithDefaultItemPolicy(p ItemPolicy) Option {
	return func(c *config) { c.defaultPolicy = p }
}

// WithLogger sets the logger. Defaults to a console logger that logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}
