package policy

import (
	"container/list"
	"sync"

	"github.com/agentuity/go-entitycache/cache"
)

// orderedPolicy keeps identities in a list, front first in eviction order.
// promoteOnHit distinguishes LRU (hits move to the back) from FIFO.
type orderedPolicy struct {
	mu           sync.Mutex
	ll           *list.List
	idx          map[cache.Identity]*list.Element
	promoteOnHit bool
}

func newOrderedPolicy(promoteOnHit bool) *orderedPolicy {
	return &orderedPolicy{
		ll:           list.New(),
		idx:          make(map[cache.Identity]*list.Element),
		promoteOnHit: promoteOnHit,
	}
}

func (p *orderedPolicy) OnCacheEvent(e cache.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Type {
	case cache.EventCacheHit:
		if el, ok := p.idx[e.ID]; ok && p.promoteOnHit {
			p.ll.MoveToBack(el)
		}
	case cache.EventItemAdded:
		if el, ok := p.idx[e.ID]; ok {
			if p.promoteOnHit {
				p.ll.MoveToBack(el)
			}
			return
		}
		p.idx[e.ID] = p.ll.PushBack(e.ID)
	case cache.EventItemRemoved:
		if el, ok := p.idx[e.ID]; ok {
			delete(p.idx, e.ID)
			p.ll.Remove(el)
		}
	}
}

func (p *orderedPolicy) EntitiesToRemove(count int) []cache.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= 0 {
		return nil
	}
	victims := make([]cache.Identity, 0, min(count, p.ll.Len()))
	for el := p.ll.Front(); el != nil && len(victims) < count; el = el.Next() {
		victims = append(victims, el.Value.(cache.Identity))
	}
	return victims
}

// Len returns the number of identities the policy tracks.
func (p *orderedPolicy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ll.Len()
}

// LRU evicts the least recently used entities first. An entity is used when
// it is added or hit.
type LRU struct {
	*orderedPolicy
}

var _ cache.ReplacementPolicy = (*LRU)(nil)

// NewLRU returns an empty LRU policy.
func NewLRU() *LRU {
	return &LRU{newOrderedPolicy(true)}
}

// FIFO evicts entities in the order they were first added.
type FIFO struct {
	*orderedPolicy
}

var _ cache.ReplacementPolicy = (*FIFO)(nil)

// NewFIFO returns an empty FIFO policy.
func NewFIFO() *FIFO {
	return &FIFO{newOrderedPolicy(false)}
}
