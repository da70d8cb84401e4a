package config

import (
	"context"
	"strings"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/agentuity/go-entitycache/logger"
	"github.com/agentuity/go-entitycache/policy"
	"github.com/agentuity/go-entitycache/store"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// defaultStoreName names the Redis hash or SQLite namespace of an unnamed
// cache, so restarts find the same data.
const defaultStoreName = "default"

// NewReplacementPolicy returns a fresh replacement policy of the configured
// kind.
func (c *Config) NewReplacementPolicy() cache.ReplacementPolicy {
	switch strings.ToLower(c.Replacement) {
	case ReplacementLFU:
		return policy.NewLFU()
	case ReplacementFIFO:
		return policy.NewFIFO()
	default:
		return policy.NewLRU()
	}
}

// NewItemPolicy returns a fresh item policy of the configured default kind,
// or nil when none is configured. Expiring policies track a single entity,
// so call it once per entity.
func (c *Config) NewItemPolicy(opts ...policy.Option) cache.ItemPolicy {
	ttl := c.DefaultItemPolicy.TTL.D()
	switch strings.ToLower(c.DefaultItemPolicy.Kind) {
	case ItemPolicyPinned:
		return policy.Pinned()
	case ItemPolicyEvictOnCleanup:
		return policy.EvictOnCleanup()
	case ItemPolicyExpiresAfter:
		return policy.ExpiresAfter(ttl, opts...)
	case ItemPolicySliding:
		return policy.Sliding(ttl, opts...)
	default:
		return nil
	}
}

// SharedItemPolicy reports whether the configured item policy is stateless
// and can be installed once as the cache default.
func (c *Config) SharedItemPolicy() bool {
	switch strings.ToLower(c.DefaultItemPolicy.Kind) {
	case ItemPolicyPinned, ItemPolicyEvictOnCleanup:
		return true
	}
	return false
}

// Options returns the cache options the configuration describes.
func (c *Config) Options(log logger.Logger) []cache.Option {
	opts := []cache.Option{cache.WithEvictionFactor(c.EvictionFactor)}
	if c.Name != "" {
		opts = append(opts, cache.WithName(c.Name))
	}
	if log != nil {
		opts = append(opts, cache.WithLogger(log))
	}
	if c.SharedItemPolicy() {
		opts = append(opts, cache.WithDefaultItemPolicy(c.NewItemPolicy()))
	}
	return opts
}

func (c *Config) storeName() string {
	if c.Name != "" {
		return c.Name
	}
	return defaultStoreName
}

func (c *Config) storeOptions() []store.Option {
	opts := []store.Option{store.WithQueryTimeout(c.Store.QueryTimeout.D())}
	if c.Store.Prefix != "" {
		opts = append(opts, store.WithPrefix(c.Store.Prefix))
	}
	return opts
}

// NewStore returns the configured backing store and a function releasing
// the resources it holds.
func NewStore[E cache.Entity](ctx context.Context, c *Config) (cache.BackingStore[E], func() error, error) {
	switch strings.ToLower(c.Store.Type) {
	case StoreRedis:
		redisOpts, err := redis.ParseURL(c.Store.RedisURL)
		if err != nil {
			return nil, nil, errors.Mark(errors.Wrap(err, "config: parsing redis_url"), ErrInvalid)
		}
		client := redis.NewClient(redisOpts)
		s, err := store.NewRedis[E](ctx, client, c.storeName(), c.storeOptions()...)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil
	case StoreSQLite:
		s, err := store.NewSQLite[E](ctx, c.Store.SQLitePath, c.storeName(), c.storeOptions()...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return cache.NewMemoryStore[E](), func() error { return nil }, nil
	}
}

// NewCache builds the ThresholdEntityCache the configuration describes. The
// returned function closes the cache and its store.
func NewCache[E cache.Entity](ctx context.Context, c *Config, log logger.Logger) (*cache.ThresholdEntityCache[E], func() error, error) {
	s, closeStore, err := NewStore[E](ctx, c)
	if err != nil {
		return nil, nil, err
	}
	tc, err := cache.NewThreshold[E](s, c.NewReplacementPolicy(), c.MaxItems, c.Options(log)...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	shutdown := func() error {
		return errors.CombineErrors(tc.Close(), closeStore())
	}
	return tc, shutdown, nil
}
