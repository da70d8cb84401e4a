package cache

import "sync/atomic"

// Stats is a snapshot of an EntityCache's counters.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Added    uint64
	Removed  uint64
	Evicted  uint64 // removed by the replacement policy during Cleanup
	Forced   uint64 // removed by an item policy during Cleanup
	Cleanups uint64
}

// HitRatio returns hits / (hits + misses), or 0 before the first Read.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type stats struct {
	hits     atomic.Uint64
	misses   atomic.Uint64
	added    atomic.Uint64
	removed  atomic.Uint64
	evicted  atomic.Uint64
	forced   atomic.Uint64
	cleanups atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Added:    s.added.Load(),
		Removed:  s.removed.Load(),
		Evicted:  s.evicted.Load(),
		Forced:   s.forced.Load(),
		Cleanups: s.cleanups.Load(),
	}
}
