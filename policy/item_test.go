package policy

import (
	"sync"
	"testing"
	"time"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestExpiresAfter(t *testing.T) {
	clock := newFakeClock()
	p := ExpiresAfter(time.Minute, WithClock(clock.Now))
	assert.Equal(t, cache.OnCacheHit|cache.OnCacheCleanup, p.RelevantMilestones())

	assert.Equal(t, cache.ActionNeutral, p.Action(cache.OnCacheHit))
	clock.Advance(59 * time.Second)
	assert.Equal(t, cache.ActionNeutral, p.Action(cache.OnCacheCleanup))
	clock.Advance(time.Second)
	assert.Equal(t, cache.ActionRemove, p.Action(cache.OnCacheHit))
	assert.Equal(t, cache.ActionRemove, p.Action(cache.OnCacheCleanup))
}

func TestExpiresAt(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Hour)
	p := ExpiresAt(deadline, WithClock(clock.Now))
	assert.Equal(t, deadline, p.ExpiresAtTime())
	clock.Advance(2 * time.Hour)
	assert.Equal(t, cache.ActionRemove, p.Action(cache.OnCacheHit))
}

func TestSlidingExtendsOnHit(t *testing.T) {
	clock := newFakeClock()
	p := Sliding(time.Minute, WithClock(clock.Now))

	clock.Advance(50 * time.Second)
	assert.Equal(t, cache.ActionNeutral, p.Action(cache.OnCacheHit))
	assert.Equal(t, clock.Now().Add(time.Minute), p.ExpiresAtTime())

	// a cleanup does not count as use
	clock.Advance(50 * time.Second)
	assert.Equal(t, cache.ActionNeutral, p.Action(cache.OnCacheCleanup))
	clock.Advance(10 * time.Second)
	assert.Equal(t, cache.ActionRemove, p.Action(cache.OnCacheCleanup))
}

func TestStaticPolicies(t *testing.T) {
	pinned := Pinned()
	assert.Equal(t, cache.OnReplacement, pinned.RelevantMilestones())
	assert.Equal(t, cache.ActionPreserve, pinned.Action(cache.OnReplacement))
	assert.Equal(t, cache.ActionNeutral, pinned.Action(cache.OnCacheHit))

	evict := EvictOnCleanup()
	assert.Equal(t, cache.OnCacheCleanup, evict.RelevantMilestones())
	assert.Equal(t, cache.ActionRemove, evict.Action(cache.OnCacheCleanup))
}

func TestCombine(t *testing.T) {
	clock := newFakeClock()
	expiring := ExpiresAfter(time.Minute, WithClock(clock.Now))
	p := Combine(Pinned(), nil, expiring)

	assert.Equal(t, cache.AllMilestones, p.RelevantMilestones())
	assert.Equal(t, cache.ActionPreserve, p.Action(cache.OnReplacement))
	assert.Equal(t, cache.ActionNeutral, p.Action(cache.OnCacheCleanup))

	clock.Advance(time.Minute)
	assert.Equal(t, cache.ActionRemove, p.Action(cache.OnCacheCleanup))

	both := Combine(Pinned(), staticPolicy{milestone: cache.OnReplacement, action: cache.ActionRemove})
	assert.Equal(t, cache.ActionRemove, both.Action(cache.OnReplacement))

	assert.Equal(t, cache.Milestone(0), Combine().RelevantMilestones())
}
