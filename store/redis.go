package store

import (
	"context"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a BackingStore keeping every entity of one cache in a single
// Redis hash, one field per identity digest.
type RedisStore[E cache.Entity] struct {
	client *redis.Client
	ctx    context.Context
	key    string
	cfg    config
}

var _ cache.BackingStore[cache.Entity] = (*RedisStore[cache.Entity])(nil)

// NewRedis returns a RedisStore writing to the hash "<prefix>:<name>".
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewRedis[E cache.Entity](ctx context.Context, client *redis.Client, name string, opts ...Option) (*RedisStore[E], error) {
	if client == nil {
		return nil, errors.Mark(errors.New("store: nil redis client"), cache.ErrInvalidArgument)
	}
	if name == "" {
		return nil, errors.Mark(errors.New("store: empty store name"), cache.ErrInvalidArgument)
	}
	cfg := applyOptions(opts)
	key := name
	if cfg.prefix != "" {
		key = cfg.prefix + ":" + name
	}
	return &RedisStore[E]{
		client: client,
		ctx:    ctx,
		key:    key,
		cfg:    cfg,
	}, nil
}

// Key returns the Redis hash the store writes to.
func (s *RedisStore[E]) Key() string {
	return s.key
}

func (s *RedisStore[E]) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.cfg.queryTimeout)
}

func (s *RedisStore[E]) Count() (int, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "store: HLEN %s", s.key)
	}
	return int(n), nil
}

func (s *RedisStore[E]) Add(entity E) error {
	data, err := encode(entity)
	if err != nil {
		return err
	}
	ctx, cancel := s.queryCtx()
	defer cancel()
	if err := s.client.HSet(ctx, s.key, Digest(entity.Identity()), data).Err(); err != nil {
		return errors.Wrapf(err, "store: HSET %s", s.key)
	}
	return nil
}

func (s *RedisStore[E]) Contains(id cache.Identity) (bool, error) {
	_, ok, err := s.Read(id)
	return ok, err
}

func (s *RedisStore[E]) Read(id cache.Identity) (E, bool, error) {
	var zero E
	ctx, cancel := s.queryCtx()
	defer cancel()
	data, err := s.client.HGet(ctx, s.key, Digest(id)).Bytes()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.Wrapf(err, "store: HGET %s", s.key)
	}
	return decodeMatching[E](data, id)
}

func (s *RedisStore[E]) ReadAll() (map[cache.Identity]E, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "store: HGETALL %s", s.key)
	}
	out := make(map[cache.Identity]E, len(fields))
	for _, data := range fields {
		entity, err := decode[E]([]byte(data))
		if err != nil {
			return nil, err
		}
		out[entity.Identity()] = entity
	}
	return out, nil
}

func (s *RedisStore[E]) ReadAllIdentities() ([]cache.Identity, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	ids := make([]cache.Identity, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore[E]) Remove(id cache.Identity) error {
	ctx, cancel := s.queryCtx()
	defer cancel()
	if err := s.client.HDel(ctx, s.key, Digest(id)).Err(); err != nil {
		return errors.Wrapf(err, "store: HDEL %s", s.key)
	}
	return nil
}

// Clear deletes the whole hash.
func (s *RedisStore[E]) Clear() error {
	ctx, cancel := s.queryCtx()
	defer cancel()
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrapf(err, "store: DEL %s", s.key)
	}
	return nil
}

// Close is a no-op; the caller owns the redis.Client lifecycle.
func (s *RedisStore[E]) Close() error {
	return nil
}
