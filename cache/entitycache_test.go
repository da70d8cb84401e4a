package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentuity/go-entitycache/logger"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type widget struct {
	ID   int
	Name string
}

func (w *widget) Identity() Identity { return IdentityFor[widget](w.ID) }

func widgetID(n int) Identity { return IdentityFor[widget](n) }

// scriptedPolicy records every event and, unless victims is set, nominates
// identities in insertion order.
type scriptedPolicy struct {
	mu        sync.Mutex
	events    []Event
	order     []Identity
	victims   []Identity
	requested []int
}

func (p *scriptedPolicy) OnCacheEvent(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	switch e.Type {
	case EventItemAdded:
		for _, id := range p.order {
			if id == e.ID {
				return
			}
		}
		p.order = append(p.order, e.ID)
	case EventItemRemoved:
		for i, id := range p.order {
			if id == e.ID {
				p.order = append(p.order[:i:i], p.order[i+1:]...)
				return
			}
		}
	}
}

func (p *scriptedPolicy) EntitiesToRemove(count int) []Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, count)
	src := p.order
	if p.victims != nil {
		src = p.victims
	}
	out := make([]Identity, min(count, len(src)))
	copy(out, src)
	return out
}

func (p *scriptedPolicy) eventTypes() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *scriptedPolicy) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

func newTestCache(t *testing.T, opts ...Option) (*EntityCache[*widget], *scriptedPolicy) {
	t.Helper()
	policy := &scriptedPolicy{}
	c, err := New[*widget](NewMemoryStore[*widget](), policy, opts...)
	require.NoError(t, err)
	return c, policy
}

func fill(t *testing.T, c *EntityCache[*widget], n int, policy ItemPolicy) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, c.Add(&widget{ID: i}, policy))
	}
}

func failingLoader(t *testing.T) Loader[*widget] {
	return func(id Identity) (*widget, error) {
		t.Errorf("loader called for %s", id)
		return nil, errors.New("unexpected load")
	}
}

func removeOn(m Milestone) ItemPolicy {
	return ItemPolicyFunc(m, func(Milestone) ItemAction { return ActionRemove })
}

func preserveOn(m Milestone) ItemPolicy {
	return ItemPolicyFunc(m, func(Milestone) ItemAction { return ActionPreserve })
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New[*widget](nil, &scriptedPolicy{})
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = New[*widget](NewMemoryStore[*widget](), nil)
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = New[*widget](NewMemoryStore[*widget](), &scriptedPolicy{}, WithEvictionFactor(1.5))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestAddRejectsInvalidEntities(t *testing.T) {
	c, policy := newTestCache(t)

	var nilWidget *widget
	err := c.Add(nilWidget, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Empty(t, policy.eventTypes())

	n, err := c.Count()
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAddFiresItemAdded(t *testing.T) {
	c, policy := newTestCache(t)
	require.NoError(t, c.Add(&widget{ID: 1, Name: "one"}, nil))

	ok, err := c.Contains(widgetID(1))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []EventType{EventItemAdded}, policy.eventTypes())
	assert.Equal(t, widgetID(1), policy.events[0].ID)
}

func TestReadMissThenHit(t *testing.T) {
	c, policy := newTestCache(t)
	id := widgetID(42)

	calls := 0
	w, err := c.Read(id, nil, func(got Identity) (*widget, error) {
		calls++
		assert.Equal(t, id, got)
		return &widget{ID: 42, Name: "answer"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", w.Name)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []EventType{EventCacheMiss, EventItemAdded}, policy.eventTypes())

	policy.reset()
	cached, err := c.Read(id, nil, failingLoader(t))
	require.NoError(t, err)
	assert.Same(t, w, cached)
	assert.Equal(t, []EventType{EventCacheHit}, policy.eventTypes())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRatio())
}

func TestReadRemoveOnHitForcesReload(t *testing.T) {
	c, policy := newTestCache(t)
	require.NoError(t, c.Add(&widget{ID: 1, Name: "stale"}, removeOn(OnCacheHit)))
	policy.reset()

	w, err := c.Read(widgetID(1), nil, func(Identity) (*widget, error) {
		return &widget{ID: 1, Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", w.Name)
	assert.Equal(t, []EventType{EventCacheMiss, EventItemAdded}, policy.eventTypes())

	// the reload recorded no policy, so the next read is a plain hit
	w, err = c.Read(widgetID(1), nil, failingLoader(t))
	require.NoError(t, err)
	assert.Equal(t, "fresh", w.Name)
}

func TestReadPreserveAndNeutralOnHitAreHits(t *testing.T) {
	c, _ := newTestCache(t)
	neutral := ItemPolicyFunc(OnCacheHit, func(Milestone) ItemAction { return ActionNeutral })
	require.NoError(t, c.Add(&widget{ID: 1}, preserveOn(OnCacheHit)))
	require.NoError(t, c.Add(&widget{ID: 2}, neutral))

	for _, id := range []Identity{widgetID(1), widgetID(2)} {
		_, err := c.Read(id, nil, failingLoader(t))
		assert.NoError(t, err)
	}
}

func TestReadSkipsIrrelevantMilestones(t *testing.T) {
	c, _ := newTestCache(t)
	called := false
	p := ItemPolicyFunc(OnCacheCleanup, func(Milestone) ItemAction {
		called = true
		return ActionRemove
	})
	require.NoError(t, c.Add(&widget{ID: 1}, p))
	_, err := c.Read(widgetID(1), nil, failingLoader(t))
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestReadLoaderErrorPropagates(t *testing.T) {
	c, _ := newTestCache(t)
	errBackend := errors.New("backend down")

	_, err := c.Read(widgetID(1), nil, func(Identity) (*widget, error) {
		return nil, errBackend
	})
	assert.ErrorIs(t, err, errBackend)

	// the lock was released and nothing was stored
	require.NoError(t, c.Add(&widget{ID: 2}, nil))
	ok, err := c.Contains(widgetID(1))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestReadLoaderPanicReleasesLock(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Panics(t, func() {
		_, _ = c.Read(widgetID(1), nil, func(Identity) (*widget, error) {
			panic("boom")
		})
	})
	assert.NoError(t, c.Add(&widget{ID: 1}, nil))
	assert.False(t, c.lock.IsLocked())
}

func TestReadValidatesArguments(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Read(Identity{}, nil, failingLoader(t))
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = c.Read(widgetID(1), nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = c.Read(widgetID(1), nil, func(Identity) (*widget, error) { return nil, nil })
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = c.Read(widgetID(1), nil, func(Identity) (*widget, error) { return &widget{ID: 2}, nil })
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	n, _ := c.Count()
	assert.Equal(t, 0, n)
}

func TestReadRecordsPolicy(t *testing.T) {
	def := preserveOn(OnReplacement)
	c, _ := newTestCache(t, WithDefaultItemPolicy(def))
	explicit := removeOn(OnCacheCleanup)

	load := func(id Identity) (*widget, error) { return &widget{ID: id.Value.(int)}, nil }
	_, err := c.Read(widgetID(1), explicit, load)
	require.NoError(t, err)
	_, err = c.Read(widgetID(2), nil, load)
	require.NoError(t, err)

	assert.Same(t, explicit, c.itemPolicies[widgetID(1)])
	assert.Same(t, def, c.itemPolicies[widgetID(2)])
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	c, _ := newTestCache(t)
	id := widgetID(7)

	var calls atomic.Int32
	var reading sync.WaitGroup
	reading.Add(2)
	loader := func(Identity) (*widget, error) {
		calls.Add(1)
		reading.Wait()
		// the other Read is now queued behind the exclusive lock
		time.Sleep(20 * time.Millisecond)
		return &widget{ID: 7}, nil
	}

	var results [2]*widget
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			reading.Done()
			w, err := c.Read(id, nil, loader)
			results[i] = w
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, results[0], results[1])
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c, _ := newTestCache(t)
	load := func(id Identity) (*widget, error) { return &widget{ID: id.Value.(int)}, nil }

	var g errgroup.Group
	for worker := 0; worker < 8; worker++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				id := widgetID(i % 17)
				if _, err := c.Read(id, nil, load); err != nil {
					return err
				}
				if i%10 == 0 {
					if err := c.Remove(id); err != nil {
						return err
					}
				}
				if i%50 == 0 {
					if err := c.Cleanup(); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	n, err := c.Count()
	assert.NoError(t, err)
	assert.LessOrEqual(t, n, 17)
}

func TestRemove(t *testing.T) {
	c, policy := newTestCache(t)
	fill(t, c, 3, removeOn(OnCacheCleanup))
	policy.reset()

	require.NoError(t, c.Remove(widgetID(1), widgetID(2)))
	assert.Equal(t, []EventType{EventItemRemoved, EventItemRemoved}, policy.eventTypes())
	assert.NotContains(t, c.itemPolicies, widgetID(1))
	n, _ := c.Count()
	assert.Equal(t, 1, n)
}

func TestRemoveAbortsOnInvalidIdentity(t *testing.T) {
	c, _ := newTestCache(t)
	fill(t, c, 3, nil)

	err := c.Remove(widgetID(1), Identity{}, widgetID(2))
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	ok, _ := c.Contains(widgetID(1))
	assert.False(t, ok)
	ok, _ = c.Contains(widgetID(2))
	assert.True(t, ok)
}

func TestPurge(t *testing.T) {
	c, policy := newTestCache(t)
	require.NoError(t, c.Purge())
	assert.Empty(t, policy.eventTypes())

	fill(t, c, 5, preserveOn(OnReplacement))
	require.NoError(t, c.Purge())
	n, err := c.Count()
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, c.itemPolicies)

	require.NoError(t, c.Purge())
	n, _ = c.Count()
	assert.Equal(t, 0, n)
}

func TestCleanupForcedRemoval(t *testing.T) {
	c, policy := newTestCache(t)
	policy.victims = []Identity{}
	fill(t, c, 3, nil)
	require.NoError(t, c.Add(&widget{ID: 4}, removeOn(OnCacheCleanup)))

	require.NoError(t, c.Cleanup())
	ok, _ := c.Contains(widgetID(4))
	assert.False(t, ok)
	n, _ := c.Count()
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(1), c.Stats().Forced)
}

func TestCleanupPreserveOverride(t *testing.T) {
	c, policy := newTestCache(t)
	require.NoError(t, c.Add(&widget{ID: 1}, preserveOn(OnReplacement)))
	require.NoError(t, c.Add(&widget{ID: 2}, nil))
	require.NoError(t, c.Add(&widget{ID: 3}, nil))
	policy.victims = []Identity{widgetID(1), widgetID(2)}

	require.NoError(t, c.Cleanup())
	ok, _ := c.Contains(widgetID(1))
	assert.True(t, ok)
	ok, _ = c.Contains(widgetID(2))
	assert.False(t, ok)
	ok, _ = c.Contains(widgetID(3))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evicted)
}

func TestCleanupRequestsEvictionFactorShare(t *testing.T) {
	c, policy := newTestCache(t)
	fill(t, c, 10, nil)

	require.NoError(t, c.Cleanup())
	assert.Equal(t, []int{8}, policy.requested)
	n, _ := c.Count()
	assert.Equal(t, 2, n)
	// insertion order: the two newest survive
	for _, id := range []int{9, 10} {
		ok, _ := c.Contains(widgetID(id))
		assert.True(t, ok)
	}
}

func TestCleanupCustomEvictionFactor(t *testing.T) {
	c, policy := newTestCache(t, WithEvictionFactor(0.5))
	fill(t, c, 5, nil)
	require.NoError(t, c.Cleanup())
	assert.Equal(t, []int{2}, policy.requested)
	n, _ := c.Count()
	assert.Equal(t, 3, n)

	c2, policy2 := newTestCache(t, WithEvictionFactor(0))
	fill(t, c2, 5, nil)
	require.NoError(t, c2.Cleanup())
	assert.Empty(t, policy2.requested)
}

func TestCleanupIgnoresExtraVictims(t *testing.T) {
	c, policy := newTestCache(t)
	fill(t, c, 2, nil)
	policy.victims = []Identity{widgetID(1), widgetID(2)}

	// floor(2 * 0.8) = 1
	require.NoError(t, c.Cleanup())
	n, _ := c.Count()
	assert.Equal(t, 1, n)
}

func TestSubscribe(t *testing.T) {
	c, _ := newTestCache(t)
	var got []string
	unsubscribeA := c.Subscribe(ObserverFunc(func(e Event) { got = append(got, "a:"+e.Type.String()) }))
	c.Subscribe(ObserverFunc(func(e Event) { got = append(got, "b:"+e.Type.String()) }))

	require.NoError(t, c.Add(&widget{ID: 1}, nil))
	unsubscribeA()
	unsubscribeA()
	require.NoError(t, c.Remove(widgetID(1)))

	assert.Equal(t, []string{"a:item-added", "b:item-added", "b:item-removed"}, got)
}

func TestSetReplacementPolicy(t *testing.T) {
	c, _ := newTestCache(t)
	fill(t, c, 3, nil)

	next := &scriptedPolicy{}
	require.NoError(t, c.SetReplacementPolicy(next))
	assert.Len(t, next.order, 3)

	require.NoError(t, c.Add(&widget{ID: 4}, nil))
	assert.Len(t, next.order, 4)

	assert.True(t, errors.Is(c.SetReplacementPolicy(nil), ErrInvalidArgument))
}

func TestClose(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Add(&widget{ID: 1}, nil), ErrClosed)
	_, err := c.Read(widgetID(1), nil, failingLoader(t))
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Panics(t, func() { _ = c.Close() })
}

func TestLockedHelpersAssertLockMode(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Panics(t, func() { _ = c.addLocked(widgetID(1), &widget{ID: 1}, nil) })
	assert.Panics(t, func() { _ = c.removeLocked(widgetID(1)) })
	assert.Panics(t, func() { _ = c.cleanupLocked() })
	assert.Panics(t, func() { _, _, _ = c.lookupLocked(widgetID(1)) })
}

func TestLogging(t *testing.T) {
	log := logger.NewTestLogger()
	c, _ := newTestCache(t, WithLogger(log), WithName("widgets"))
	fill(t, c, 5, nil)
	require.NoError(t, c.Cleanup())

	var found bool
	for _, entry := range log.Logs() {
		if entry.Severity == "DEBUG" && entry.String() == "[widgets] cleanup: forced=0 target=4 evicted=4 preserved=0" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, "widgets", c.Name())
}
