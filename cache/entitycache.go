package cache

import (
	"math"
	"sync/atomic"

	"github.com/agentuity/go-entitycache/logger"
	"github.com/agentuity/go-entitycache/rwlock"
	"github.com/cockroachdb/errors"
)

// Loader fetches an entity missing from the cache. It runs while the cache
// holds its exclusive lock and must not call back into the same cache.
type Loader[E Entity] func(id Identity) (E, error)

// EntityCache is a read-through cache of entities over a BackingStore. One
// reader/writer lock guards the store, the replacement policy and the item
// policy table together.
type EntityCache[E Entity] struct {
	lock           rwlock.Mutex
	store          BackingStore[E]
	replacement    ReplacementPolicy
	defaultPolicy  ItemPolicy
	itemPolicies   map[Identity]ItemPolicy
	evictionFactor float64

	// afterAdd runs under the exclusive lock after every insertion, once
	// ItemAdded has been delivered.
	afterAdd func(id Identity) error

	observers observers
	stats     stats
	closed    atomic.Bool
	name      string
	logger    logger.Logger
}

// New returns an EntityCache over store that evicts with replacement.
func New[E Entity](store BackingStore[E], replacement ReplacementPolicy, opts ...Option) (*EntityCache[E], error) {
	if isNil(store) {
		return nil, invalidState("cache: no backing store configured")
	}
	if isNil(replacement) {
		return nil, invalidState("cache: no replacement policy configured")
	}
	cfg := applyOptions(opts)
	if cfg.evictionFactor < 0 || cfg.evictionFactor > 1 || math.IsNaN(cfg.evictionFactor) {
		return nil, invalidArgument("cache: eviction factor %v is outside [0, 1]", cfg.evictionFactor)
	}
	log := cfg.logger
	if log == nil {
		log = logger.NewConsoleLogger(logger.LevelNone)
	}
	return &EntityCache[E]{
		store:          store,
		replacement:    replacement,
		defaultPolicy:  cfg.defaultPolicy,
		itemPolicies:   make(map[Identity]ItemPolicy),
		evictionFactor: cfg.evictionFactor,
		name:           cfg.name,
		logger:         log.WithPrefix("[" + cfg.name + "]"),
	}, nil
}

// Name returns the name the cache logs under.
func (c *EntityCache[E]) Name() string {
	return c.name
}

// Add stores entity, replacing any entity with the same identity. policy is
// recorded for the entity; when nil the default item policy, if any, is used.
func (c *EntityCache[E]) Add(entity E, policy ItemPolicy) error {
	id, err := identityOf(entity)
	if err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.addLocked(id, entity, policy)
}

// Contains reports whether an entity is stored under id. The answer may be
// stale by the time the caller looks at it.
func (c *EntityCache[E]) Contains(id Identity) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	if c.closed.Load() {
		return false, ErrClosed
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	ok, err := c.store.Contains(id)
	if err != nil {
		return false, errors.Wrapf(err, "cache: checking %s", id)
	}
	return ok, nil
}

// Count returns the number of stored entities.
func (c *EntityCache[E]) Count() (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	n, err := c.store.Count()
	if err != nil {
		return 0, errors.Wrap(err, "cache: counting entities")
	}
	return n, nil
}

// Read returns the entity stored under id. On a miss, or when the entity's
// item policy rejects the hit, loader is called with the exclusive lock held
// and its result is stored with policy (or the default item policy) before
// being returned. Concurrent misses are serialized, so a key is never loaded
// twice at once. A loader error is returned as is and nothing is stored.
func (c *EntityCache[E]) Read(id Identity, policy ItemPolicy, loader Loader[E]) (E, error) {
	var zero E
	if err := id.Validate(); err != nil {
		return zero, err
	}
	if loader == nil {
		return zero, invalidArgument("cache: nil loader for %s", id)
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}

	ul := c.lock.UpgradeableRLock()
	defer ul.Release()

	entity, hit, err := c.lookupLocked(id)
	if err != nil {
		return zero, err
	}
	if hit {
		ul.Downgrade()
		c.stats.hits.Add(1)
		c.logger.Trace("hit %s", id)
		c.fire(Event{Type: EventCacheHit, ID: id})
		return entity, nil
	}

	ul.Upgrade()
	c.stats.misses.Add(1)
	c.logger.Trace("miss %s", id)
	c.fire(Event{Type: EventCacheMiss, ID: id})

	loaded, err := loader(id)
	if err != nil {
		c.logger.Warn("loader failed for %s: %s", id, err)
		return zero, err
	}
	loadedID, err := identityOf(loaded)
	if err != nil {
		return zero, errors.Wrapf(err, "cache: loader result for %s", id)
	}
	if loadedID != id {
		return zero, invalidArgument("cache: loader returned %s for %s", loadedID, id)
	}
	if err := c.addLocked(id, loaded, policy); err != nil {
		return zero, err
	}
	return loaded, nil
}

// Remove removes the entities stored under ids. Processing stops at the
// first invalid identity or store failure; identities before it stay removed.
func (c *EntityCache[E]) Remove(ids ...Identity) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return err
		}
		if err := c.removeLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// Purge removes every entity.
func (c *EntityCache[E]) Purge() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	ids, err := c.store.ReadAllIdentities()
	if err != nil {
		return errors.Wrap(err, "cache: listing entities to purge")
	}
	for _, id := range ids {
		if err := c.removeLocked(id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		c.logger.Debug("purged %d entities", len(ids))
	}
	return nil
}

// Cleanup evicts entities in two phases. First, every entity whose item
// policy returns ActionRemove at OnCacheCleanup is removed. Then the
// replacement policy is asked for floor(count * eviction factor) victims,
// and each is removed unless its item policy returns ActionPreserve at
// OnReplacement.
func (c *EntityCache[E]) Cleanup() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.cleanupLocked()
}

// SetReplacementPolicy swaps the replacement policy. The new policy is told
// about every stored entity through ItemAdded events before it takes over.
func (c *EntityCache[E]) SetReplacementPolicy(p ReplacementPolicy) error {
	if isNil(p) {
		return invalidArgument("cache: replacement policy is nil")
	}
	if c.closed.Load() {
		return ErrClosed
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	ids, err := c.store.ReadAllIdentities()
	if err != nil {
		return errors.Wrap(err, "cache: listing entities for new replacement policy")
	}
	for _, id := range ids {
		p.OnCacheEvent(Event{Type: EventItemAdded, ID: id})
	}
	c.replacement = p
	return nil
}

// Subscribe registers an observer for every event the cache fires and
// returns a function that cancels the subscription. Observers run after the
// replacement policy, in subscription order.
func (c *EntityCache[E]) Subscribe(o Observer) (unsubscribe func()) {
	if isNil(o) {
		return func() {}
	}
	return c.observers.add(o)
}

// Stats returns a snapshot of the cache counters.
func (c *EntityCache[E]) Stats() Stats {
	return c.stats.snapshot()
}

// Close drops every subscription. Closing a cache twice is a programming
// error and panics.
func (c *EntityCache[E]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		panic(errors.AssertionFailedf("cache: %s closed twice", c.name))
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.afterAdd = nil
	c.observers.clear()
	return nil
}

func (c *EntityCache[E]) lookupLocked(id Identity) (E, bool, error) {
	c.assertReadLocked("lookup")
	var zero E
	entity, ok, err := c.store.Read(id)
	if err != nil {
		return zero, false, errors.Wrapf(err, "cache: reading %s", id)
	}
	if !ok {
		return zero, false, nil
	}
	if consult(c.itemPolicies[id], OnCacheHit) == ActionRemove {
		c.logger.Trace("item policy rejected hit on %s", id)
		return zero, false, nil
	}
	return entity, true, nil
}

func (c *EntityCache[E]) addLocked(id Identity, entity E, policy ItemPolicy) error {
	c.assertWriteLocked("add")
	if err := c.store.Add(entity); err != nil {
		return errors.Wrapf(err, "cache: adding %s", id)
	}
	if isNil(policy) {
		policy = c.defaultPolicy
	}
	if policy != nil {
		c.itemPolicies[id] = policy
	} else {
		delete(c.itemPolicies, id)
	}
	c.stats.added.Add(1)
	c.fire(Event{Type: EventItemAdded, ID: id})
	if c.afterAdd != nil {
		return c.afterAdd(id)
	}
	return nil
}

func (c *EntityCache[E]) removeLocked(id Identity) error {
	c.assertWriteLocked("remove")
	if err := c.store.Remove(id); err != nil {
		return errors.Wrapf(err, "cache: removing %s", id)
	}
	delete(c.itemPolicies, id)
	c.stats.removed.Add(1)
	c.fire(Event{Type: EventItemRemoved, ID: id})
	return nil
}

func (c *EntityCache[E]) cleanupLocked() error {
	c.assertWriteLocked("cleanup")

	var forced []Identity
	for id, p := range c.itemPolicies {
		if consult(p, OnCacheCleanup) == ActionRemove {
			forced = append(forced, id)
		}
	}
	for _, id := range forced {
		if err := c.removeLocked(id); err != nil {
			return err
		}
	}
	c.stats.forced.Add(uint64(len(forced)))

	count, err := c.store.Count()
	if err != nil {
		return errors.Wrap(err, "cache: counting entities for cleanup")
	}
	target := int(math.Floor(float64(count) * c.evictionFactor))
	var evicted, preserved int
	if target > 0 {
		victims := c.replacement.EntitiesToRemove(target)
		if len(victims) > target {
			victims = victims[:target]
		}
		for _, id := range victims {
			if consult(c.itemPolicies[id], OnReplacement) == ActionPreserve {
				preserved++
				continue
			}
			if err := c.removeLocked(id); err != nil {
				return err
			}
			evicted++
		}
	}
	c.stats.evicted.Add(uint64(evicted))
	c.stats.cleanups.Add(1)
	c.logger.Debug("cleanup: forced=%d target=%d evicted=%d preserved=%d", len(forced), target, evicted, preserved)
	return nil
}

func (c *EntityCache[E]) fire(e Event) {
	c.replacement.OnCacheEvent(e)
	for _, s := range c.observers.snapshot() {
		s.observer.OnCacheEvent(e)
	}
}

func (c *EntityCache[E]) assertWriteLocked(op string) {
	if !c.lock.IsLocked() {
		panic(errors.AssertionFailedf("cache: %s requires the write lock", op))
	}
}

func (c *EntityCache[E]) assertReadLocked(op string) {
	if !c.lock.IsRLocked() && !c.lock.IsLocked() {
		panic(errors.AssertionFailedf("cache: %s requires a read lock", op))
	}
}
