// Package policy provides replacement policies and item policies for
// cache.EntityCache.
//
// Replacement policies decide which entities a cleanup evicts:
//
//   - [NewLRU] evicts the least recently used entities first.
//   - [NewLFU] evicts the least frequently hit entities first, oldest first
//     among equals.
//   - [NewFIFO] evicts in insertion order and ignores hits.
//
// Item policies override the replacement policy for a single entity:
//
//   - [ExpiresAt], [ExpiresAfter] and [Sliding] expire an entity: once
//     expired it is treated as a miss on read and removed on cleanup.
//   - [Pinned] vetoes replacement-driven eviction.
//   - [EvictOnCleanup] forces removal on the next cleanup.
//   - [Combine] merges policies, the most restrictive verdict winning.
//
// Stateful item policies (the expiring ones) track a single entity; create
// one per entity instead of sharing one as the cache default.
package policy
