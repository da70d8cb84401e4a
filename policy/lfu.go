package policy

import (
	"slices"
	"sync"

	"github.com/agentuity/go-entitycache/cache"
)

type lfuEntry struct {
	id   cache.Identity
	hits uint64
	seq  uint64
}

// LFU evicts the entities with the fewest hits first. Among entities with
// the same hit count, the one added earliest goes first.
type LFU struct {
	mu      sync.Mutex
	entries map[cache.Identity]*lfuEntry
	seq     uint64
}

var _ cache.ReplacementPolicy = (*LFU)(nil)

// NewLFU returns an empty LFU policy.
func NewLFU() *LFU {
	return &LFU{entries: make(map[cache.Identity]*lfuEntry)}
}

func (p *LFU) OnCacheEvent(e cache.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Type {
	case cache.EventCacheHit:
		if entry, ok := p.entries[e.ID]; ok {
			entry.hits++
		}
	case cache.EventItemAdded:
		if _, ok := p.entries[e.ID]; ok {
			return
		}
		p.seq++
		p.entries[e.ID] = &lfuEntry{id: e.ID, seq: p.seq}
	case cache.EventItemRemoved:
		delete(p.entries, e.ID)
	}
}

func (p *LFU) EntitiesToRemove(count int) []cache.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= 0 {
		return nil
	}
	entries := make([]lfuEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		entries = append(entries, *entry)
	}
	slices.SortFunc(entries, func(a, b lfuEntry) int {
		if a.hits != b.hits {
			if a.hits < b.hits {
				return -1
			}
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		if a.seq > b.seq {
			return 1
		}
		return 0
	})
	victims := make([]cache.Identity, 0, min(count, len(entries)))
	for _, entry := range entries[:min(count, len(entries))] {
		victims = append(victims, entry.id)
	}
	return victims
}

// Len returns the number of identities the policy tracks.
func (p *LFU) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
