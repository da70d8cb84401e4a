package cache

// ReplacementPolicy is the cache-wide eviction algorithm. It sees every event
// the cache fires and, when asked, nominates victims.
//
// OnCacheEvent may be called concurrently by readers reporting hits, so
// implementations guard their own state.
type ReplacementPolicy interface {
	Observer
	// EntitiesToRemove returns at most count identities in the order they
	// should be evicted. It must not change the policy's eviction order:
	// two calls with no event in between return the same answer.
	EntitiesToRemove(count int) []Identity
}
