package cache

import "sync"

// EventType identifies what happened to an entity.
type EventType int

const (
	EventCacheHit EventType = iota + 1
	EventCacheMiss
	EventItemAdded
	EventItemRemoved
)

func (t EventType) String() string {
	switch t {
	case EventCacheHit:
		return "cache-hit"
	case EventCacheMiss:
		return "cache-miss"
	case EventItemAdded:
		return "item-added"
	case EventItemRemoved:
		return "item-removed"
	default:
		return "unknown"
	}
}

// Event is a notification fired by an EntityCache.
type Event struct {
	Type EventType
	ID   Identity
}

// Observer receives cache events. Events are delivered synchronously on the
// goroutine performing the operation, while the cache lock is held, so an
// Observer must return quickly and must never call back into the cache.
type Observer interface {
	OnCacheEvent(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnCacheEvent(e Event) { f(e) }

type subscription struct {
	id       uint64
	observer Observer
}

// observers is a copy-on-write subscriber list. Delivery iterates a snapshot
// so subscribing from inside a callback cannot disturb the current dispatch.
type observers struct {
	mu   sync.Mutex
	next uint64
	list []subscription
}

func (o *observers) add(observer Observer) func() {
	o.mu.Lock()
	o.next++
	id := o.next
	list := make([]subscription, len(o.list), len(o.list)+1)
	copy(list, o.list)
	o.list = append(list, subscription{id: id, observer: observer})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := make([]subscription, 0, len(o.list))
	for _, s := range o.list {
		if s.id != id {
			list = append(list, s)
		}
	}
	o.list = list
}

func (o *observers) clear() {
	o.mu.Lock()
	o.list = nil
	o.mu.Unlock()
}

func (o *observers) snapshot() []subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.list
}
