package cache

import (
	"github.com/cockroachdb/errors"
)

// ThresholdEntityCache is an EntityCache that cleans itself up once its
// population reaches a maximum. The cleanup runs inline, before the Add (or
// the loading Read) that crossed the threshold returns.
type ThresholdEntityCache[E Entity] struct {
	*EntityCache[E]
	maxItems int
}

// NewThreshold returns a ThresholdEntityCache that runs Cleanup whenever the
// population reaches maxItems. The eviction factor must be above zero, or a
// cleanup would never bring the population back under maxItems.
func NewThreshold[E Entity](store BackingStore[E], replacement ReplacementPolicy, maxItems int, opts ...Option) (*ThresholdEntityCache[E], error) {
	if maxItems < 1 {
		return nil, invalidArgument("cache: maximum item count %d is below 1", maxItems)
	}
	inner, err := New(store, replacement, opts...)
	if err != nil {
		return nil, err
	}
	if inner.evictionFactor == 0 {
		return nil, invalidArgument("cache: threshold cache needs an eviction factor above 0")
	}
	t := &ThresholdEntityCache[E]{EntityCache: inner, maxItems: maxItems}
	inner.afterAdd = t.onItemAdded
	return t, nil
}

// MaxItems returns the population that triggers a cleanup.
func (t *ThresholdEntityCache[E]) MaxItems() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.maxItems
}

// SetMaxItems changes the population that triggers a cleanup. If the cache
// already holds n or more entities, it is cleaned up before SetMaxItems
// returns.
func (t *ThresholdEntityCache[E]) SetMaxItems(n int) error {
	if n < 1 {
		return invalidArgument("cache: maximum item count %d is below 1", n)
	}
	if t.closed.Load() {
		return ErrClosed
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.maxItems = n
	return t.cleanupIfFullLocked()
}

func (t *ThresholdEntityCache[E]) onItemAdded(Identity) error {
	return t.cleanupIfFullLocked()
}

func (t *ThresholdEntityCache[E]) cleanupIfFullLocked() error {
	t.assertWriteLocked("threshold check")
	count, err := t.store.Count()
	if err != nil {
		return errors.Wrap(err, "cache: counting entities for threshold")
	}
	if count < t.maxItems {
		return nil
	}
	t.logger.Debug("population %d reached maximum %d", count, t.maxItems)
	return t.cleanupLocked()
}
