// Package cache provides a concurrent, read-through cache of entities with a
// pluggable eviction algorithm and per-entity override policies.
//
// # Entities and Identities
//
// Anything implementing [Entity] can be cached. An entity is keyed by its
// [Identity]: a kind naming the owning type plus a raw key value. Identities
// compare by value, so the raw value must be a comparable type (ints,
// strings, UUIDs, small structs).
//
//	type User struct {
//	    ID   int
//	    Name string
//	}
//
//	func (u *User) Identity() cache.Identity { return cache.IdentityFor[User](u.ID) }
//
// # Reading Through the Cache
//
// [EntityCache.Read] returns the stored entity on a hit. On a miss it calls
// the supplied [Loader] and stores the result:
//
//	user, err := c.Read(cache.IdentityFor[User](42), nil, func(id cache.Identity) (*User, error) {
//	    return users.Get(ctx, id.Value.(int))
//	})
//
// The loader runs while the cache holds its exclusive lock. Two goroutines
// missing on the same key never both load it, at the price of serializing
// loads of unrelated keys too. A loader must not call back into the cache.
//
// # Backing Stores
//
// The cache reads and writes through a [BackingStore]. [MemoryStore] keeps
// entities in a map; the store package provides Redis and SQLite stores.
//
// # Eviction
//
// Eviction happens only in [EntityCache.Cleanup] (or automatically, in a
// [ThresholdEntityCache], when the population reaches its maximum). Cleanup
// runs in two phases:
//
//  1. Every entity whose [ItemPolicy] answers [ActionRemove] at
//     [OnCacheCleanup] is removed.
//  2. The [ReplacementPolicy] is asked for floor(count * eviction factor)
//     victims. Each victim is removed unless its item policy answers
//     [ActionPreserve] at [OnReplacement].
//
// The eviction factor defaults to [DefaultEvictionFactor] (0.8): a cleanup
// evicts 80% of the population and retains 20%. A factor of 0 limits Cleanup
// to forced removals and is rejected by [NewThreshold].
//
// Item policies therefore always get the last word over the replacement
// policy: they can force an eviction the algorithm would not choose, and
// veto one it did choose. An item policy can also turn a hit into a miss by
// answering [ActionRemove] at [OnCacheHit], which is how expiration is
// implemented.
//
// # Events
//
// Every hit, miss, addition and removal fires an [Event]. The replacement
// policy sees it first, then each [Observer] registered with
// [EntityCache.Subscribe], synchronously and in order, before the operation
// returns.
//
// # Locking
//
// Each cache has one lock for its whole state. [EntityCache.Contains] and
// [EntityCache.Count] take it shared; Add, Remove, Purge and Cleanup take it
// exclusively; Read takes an upgradeable read lock (see package rwlock) that
// is downgraded on a hit and upgraded on a miss, so no other writer can slip
// in between the miss decision and the insertion of the loaded entity.
//
// # Errors
//
// Bad arguments return errors matching [ErrInvalidArgument] via errors.Is,
// and are rejected before any lock is taken where possible. Store failures
// are wrapped and returned; loader failures are returned unchanged. Breaking
// the lock discipline or closing a cache twice panics.
package cache
