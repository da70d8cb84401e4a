package policy

import (
	"testing"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/stretchr/testify/assert"
)

func ids(n ...int) []cache.Identity {
	out := make([]cache.Identity, 0, len(n))
	for _, v := range n {
		out = append(out, cache.NewIdentity("test", v))
	}
	return out
}

func send(p cache.ReplacementPolicy, t cache.EventType, n ...int) {
	for _, id := range ids(n...) {
		p.OnCacheEvent(cache.Event{Type: t, ID: id})
	}
}

func TestLRUOrder(t *testing.T) {
	p := NewLRU()
	send(p, cache.EventItemAdded, 1, 2, 3, 4)
	send(p, cache.EventCacheHit, 1)
	send(p, cache.EventItemAdded, 2)

	assert.Equal(t, ids(3, 4), p.EntitiesToRemove(2))
	assert.Equal(t, ids(3, 4, 1, 2), p.EntitiesToRemove(10))
	assert.Nil(t, p.EntitiesToRemove(0))
}

func TestLRUEntitiesToRemoveIsPure(t *testing.T) {
	p := NewLRU()
	send(p, cache.EventItemAdded, 1, 2, 3)
	first := p.EntitiesToRemove(2)
	assert.Equal(t, first, p.EntitiesToRemove(2))
	assert.Equal(t, 3, p.Len())
}

func TestLRUIgnoresUnknownIdentities(t *testing.T) {
	p := NewLRU()
	send(p, cache.EventItemAdded, 1)
	send(p, cache.EventCacheHit, 9)
	send(p, cache.EventItemRemoved, 9)
	send(p, cache.EventCacheMiss, 2)
	assert.Equal(t, ids(1), p.EntitiesToRemove(5))
}

func TestLRURemove(t *testing.T) {
	p := NewLRU()
	send(p, cache.EventItemAdded, 1, 2, 3)
	send(p, cache.EventItemRemoved, 1)
	assert.Equal(t, ids(2, 3), p.EntitiesToRemove(5))
	assert.Equal(t, 2, p.Len())
}

func TestFIFOIgnoresHits(t *testing.T) {
	p := NewFIFO()
	send(p, cache.EventItemAdded, 1, 2, 3)
	send(p, cache.EventCacheHit, 1)
	send(p, cache.EventItemAdded, 1)
	assert.Equal(t, ids(1, 2), p.EntitiesToRemove(2))
}

func TestLFUOrder(t *testing.T) {
	p := NewLFU()
	send(p, cache.EventItemAdded, 1, 2, 3, 4)
	send(p, cache.EventCacheHit, 1, 1, 2, 4)

	assert.Equal(t, ids(3, 2, 4), p.EntitiesToRemove(3))
	send(p, cache.EventItemRemoved, 3)
	assert.Equal(t, ids(2, 4, 1), p.EntitiesToRemove(5))
	assert.Equal(t, 3, p.Len())
}

func TestLFUReAddKeepsCount(t *testing.T) {
	p := NewLFU()
	send(p, cache.EventItemAdded, 1, 2)
	send(p, cache.EventCacheHit, 1)
	send(p, cache.EventItemAdded, 1)
	assert.Equal(t, ids(2), p.EntitiesToRemove(1))
}
