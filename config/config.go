// Package config loads the configuration of an entity cache deployment from
// YAML, with environment overrides, and builds the cache it describes.
//
//	name: users
//	max_items: 10000
//	eviction_factor: 0.8
//	replacement: lru
//	default_item_policy:
//	  kind: sliding
//	  ttl: 15m
//	store:
//	  type: redis
//	  redis_url: redis://localhost:6379/0
//	  prefix: entitycache
//	  query_timeout: 2s
//	log_level: info
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/agentuity/go-entitycache/logger"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// EnvPrefix prefixes the environment variables that override the file.
const EnvPrefix = "ENTITYCACHE_"

// Replacement policy names.
const (
	ReplacementLRU  = "lru"
	ReplacementLFU  = "lfu"
	ReplacementFIFO = "fifo"
)

// Item policy kinds.
const (
	ItemPolicyNone           = "none"
	ItemPolicyPinned         = "pinned"
	ItemPolicyEvictOnCleanup = "evict_on_cleanup"
	ItemPolicyExpiresAfter   = "expires_after"
	ItemPolicySliding        = "sliding"
)

// Store types.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// DefaultMaxItems is the maximum population when the file does not set one.
const DefaultMaxItems = 1000

type ItemPolicyConfig struct {
	Kind string   `yaml:"kind"`
	TTL  Duration `yaml:"ttl,omitempty"`
}

type StoreConfig struct {
	Type         string   `yaml:"type"`
	RedisURL     string   `yaml:"redis_url,omitempty"`
	Prefix       string   `yaml:"prefix,omitempty"`
	SQLitePath   string   `yaml:"sqlite_path,omitempty"`
	QueryTimeout Duration `yaml:"query_timeout,omitempty"`
}

// Config describes one entity cache.
type Config struct {
	Name              string           `yaml:"name,omitempty"`
	MaxItems          int              `yaml:"max_items"`
	EvictionFactor    float64          `yaml:"eviction_factor"`
	Replacement       string           `yaml:"replacement"`
	DefaultItemPolicy ItemPolicyConfig `yaml:"default_item_policy"`
	Store             StoreConfig      `yaml:"store"`
	LogLevel          string           `yaml:"log_level,omitempty"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		MaxItems:          DefaultMaxItems,
		EvictionFactor:    cache.DefaultEvictionFactor,
		Replacement:       ReplacementLRU,
		DefaultItemPolicy: ItemPolicyConfig{Kind: ItemPolicyNone},
		Store:             StoreConfig{Type: StoreMemory},
	}
}

// Load reads the file at path, applies the ENTITYCACHE_* environment
// overrides and validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
		data = buf
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML onto the defaults. Unknown keys are rejected. The
// result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "config: decoding yaml")
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("NAME", &c.Name)
	str("REPLACEMENT", &c.Replacement)
	str("STORE_TYPE", &c.Store.Type)
	str("REDIS_URL", &c.Store.RedisURL)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup(EnvPrefix + "MAX_ITEMS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "config: %sMAX_ITEMS", EnvPrefix), ErrInvalid)
		}
		c.MaxItems = n
	}
	if v, ok := lookup(EnvPrefix + "EVICTION_FACTOR"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "config: %sEVICTION_FACTOR", EnvPrefix), ErrInvalid)
		}
		c.EvictionFactor = f
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Mark(errors.Newf("config: "+format, args...), ErrInvalid)
}

// Validate reports the first problem found, as an error matching ErrInvalid.
func (c *Config) Validate() error {
	if c.MaxItems < 1 {
		return invalid("max_items must be at least 1, got %d", c.MaxItems)
	}
	if c.EvictionFactor <= 0 || c.EvictionFactor > 1 {
		return invalid("eviction_factor must be within (0, 1], got %v", c.EvictionFactor)
	}
	switch strings.ToLower(c.Replacement) {
	case ReplacementLRU, ReplacementLFU, ReplacementFIFO:
	default:
		return invalid("unknown replacement policy %q", c.Replacement)
	}
	switch strings.ToLower(c.DefaultItemPolicy.Kind) {
	case "", ItemPolicyNone, ItemPolicyPinned, ItemPolicyEvictOnCleanup:
	case ItemPolicyExpiresAfter, ItemPolicySliding:
		if c.DefaultItemPolicy.TTL <= 0 {
			return invalid("default_item_policy %s needs a positive ttl", c.DefaultItemPolicy.Kind)
		}
	default:
		return invalid("unknown item policy kind %q", c.DefaultItemPolicy.Kind)
	}
	switch strings.ToLower(c.Store.Type) {
	case "", StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return invalid("store redis needs a redis_url")
		}
	default:
		return invalid("unknown store type %q", c.Store.Type)
	}
	if c.Store.QueryTimeout < 0 {
		return invalid("store query_timeout must not be negative")
	}
	if c.LogLevel != "" {
		if _, ok := logger.ParseLevel(c.LogLevel); !ok {
			return invalid("unknown log_level %q", c.LogLevel)
		}
	}
	return nil
}

// Save writes c as YAML to w, preceded by a generated-file banner.
func (c *Config) Save(w io.Writer) error {
	if _, err := io.WriteString(w, "# ------------------------------------------------\n# entity cache configuration\n# durations accept units from ns to w, e.g. 1d12h\n# ------------------------------------------------\n\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "config: encoding yaml")
	}
	return enc.Close()
}
