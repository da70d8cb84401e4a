package cache

import "sync"

// BackingStore is the keyed container an EntityCache reads and writes
// through. The cache owns its store: nothing else should mutate it while the
// cache is in use. Implementations that perform I/O return their failures as
// errors; the cache wraps and propagates them.
type BackingStore[E Entity] interface {
	// Count returns the number of stored entities.
	Count() (int, error)
	// Add stores entity under its identity, replacing any previous entity.
	Add(entity E) error
	// Contains reports whether an entity is stored under id.
	Contains(id Identity) (bool, error)
	// Read returns the entity stored under id, if any.
	Read(id Identity) (E, bool, error)
	// ReadAll returns every stored entity keyed by identity.
	ReadAll() (map[Identity]E, error)
	// ReadAllIdentities returns the identity of every stored entity.
	ReadAllIdentities() ([]Identity, error)
	// Remove deletes the entity stored under id. Removing a missing id is
	// not an error.
	Remove(id Identity) error
}

// MemoryStore is an in-process BackingStore over a map. Entities are stored
// as-is, so mutations through stored pointers are visible to readers.
type MemoryStore[E Entity] struct {
	mutex    sync.RWMutex
	entities map[Identity]E
}

var _ BackingStore[Entity] = (*MemoryStore[Entity])(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[E Entity]() *MemoryStore[E] {
	return &MemoryStore[E]{entities: make(map[Identity]E)}
}

func (s *MemoryStore[E]) Count() (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entities), nil
}

func (s *MemoryStore[E]) Add(entity E) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entities[entity.Identity()] = entity
	return nil
}

func (s *MemoryStore[E]) Contains(id Identity) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.entities[id]
	return ok, nil
}

func (s *MemoryStore[E]) Read(id Identity) (E, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	entity, ok := s.entities[id]
	return entity, ok, nil
}

func (s *MemoryStore[E]) ReadAll() (map[Identity]E, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	all := make(map[Identity]E, len(s.entities))
	for id, entity := range s.entities {
		all[id] = entity
	}
	return all, nil
}

func (s *MemoryStore[E]) ReadAllIdentities() ([]Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	ids := make([]Identity, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore[E]) Remove(id Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entities, id)
	return nil
}
