package policy

import (
	"sync"
	"time"

	"github.com/agentuity/go-entitycache/cache"
)

// Clock returns the current time.
type Clock func() time.Time

type options struct {
	now Clock
}

// Option configures an expiring item policy.
type Option func(*options)

// WithClock sets the clock expiring policies read the time from. Defaults to
// time.Now.
func WithClock(now Clock) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Expiration is an item policy that expires its entity at a point in time.
// An expired entity reads as a miss and is removed by the next cleanup.
// A sliding expiration moves the deadline forward on every hit it allows.
type Expiration struct {
	mu        sync.Mutex
	expiresAt time.Time
	sliding   time.Duration
	now       Clock
}

var _ cache.ItemPolicy = (*Expiration)(nil)

// ExpiresAt returns a policy expiring its entity at t.
func ExpiresAt(t time.Time, opts ...Option) *Expiration {
	o := applyOptions(opts)
	return &Expiration{expiresAt: t, now: o.now}
}

// ExpiresAfter returns a policy expiring its entity d after now.
func ExpiresAfter(d time.Duration, opts ...Option) *Expiration {
	o := applyOptions(opts)
	return &Expiration{expiresAt: o.now().Add(d), now: o.now}
}

// Sliding returns a policy expiring its entity once it has not been hit for d.
func Sliding(d time.Duration, opts ...Option) *Expiration {
	o := applyOptions(opts)
	return &Expiration{expiresAt: o.now().Add(d), sliding: d, now: o.now}
}

func (p *Expiration) RelevantMilestones() cache.Milestone {
	return cache.OnCacheHit | cache.OnCacheCleanup
}

func (p *Expiration) Action(m cache.Milestone) cache.ItemAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if !now.Before(p.expiresAt) {
		return cache.ActionRemove
	}
	if m == cache.OnCacheHit && p.sliding > 0 {
		p.expiresAt = now.Add(p.sliding)
	}
	return cache.ActionNeutral
}

// ExpiresAtTime returns the current deadline.
func (p *Expiration) ExpiresAtTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expiresAt
}

type staticPolicy struct {
	milestone cache.Milestone
	action    cache.ItemAction
}

func (p staticPolicy) RelevantMilestones() cache.Milestone { return p.milestone }

func (p staticPolicy) Action(m cache.Milestone) cache.ItemAction {
	if m == p.milestone {
		return p.action
	}
	return cache.ActionNeutral
}

// Pinned returns a policy that keeps its entity when the replacement policy
// picks it as a victim. It does not protect against forced removal.
func Pinned() cache.ItemPolicy {
	return staticPolicy{milestone: cache.OnReplacement, action: cache.ActionPreserve}
}

// EvictOnCleanup returns a policy that removes its entity on the next cleanup.
func EvictOnCleanup() cache.ItemPolicy {
	return staticPolicy{milestone: cache.OnCacheCleanup, action: cache.ActionRemove}
}

type combined []cache.ItemPolicy

// Combine returns a policy relevant wherever one of policies is. At each
// milestone every relevant policy is consulted; ActionRemove beats
// ActionPreserve, which beats ActionNeutral.
func Combine(policies ...cache.ItemPolicy) cache.ItemPolicy {
	out := make(combined, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (c combined) RelevantMilestones() cache.Milestone {
	var m cache.Milestone
	for _, p := range c {
		m |= p.RelevantMilestones()
	}
	return m
}

func (c combined) Action(m cache.Milestone) cache.ItemAction {
	verdict := cache.ActionNeutral
	for _, p := range c {
		if !p.RelevantMilestones().Has(m) {
			continue
		}
		switch p.Action(m) {
		case cache.ActionRemove:
			verdict = cache.ActionRemove
		case cache.ActionPreserve:
			if verdict == cache.ActionNeutral {
				verdict = cache.ActionPreserve
			}
		}
	}
	return verdict
}
