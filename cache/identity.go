package cache

import (
	"fmt"
	"reflect"
)

// Identity names a cached entity: the kind of the owning type plus a raw key
// value. Identities are compared by value and used as map keys, so Value
// must hold a comparable type.
type Identity struct {
	Kind  string
	Value any
}

// NewIdentity returns an Identity for the given kind and raw key value.
func NewIdentity(kind string, value any) Identity {
	return Identity{Kind: kind, Value: value}
}

// IdentityFor returns an Identity whose kind is derived from the Go type T.
// Pointer types resolve to their element type so *User and User share a kind.
//
//	id := cache.IdentityFor[User](42)
func IdentityFor[T any](value any) Identity {
	return Identity{Kind: kindOf(reflect.TypeFor[T]()), Value: value}
}

func kindOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// IsZero reports whether id is the zero Identity.
func (id Identity) IsZero() bool {
	return id.Kind == "" && id.Value == nil
}

// Validate returns an ErrInvalidArgument error if id cannot be used as a key.
func (id Identity) Validate() error {
	if id.IsZero() {
		return invalidArgument("cache: identity is empty")
	}
	if id.Kind == "" {
		return invalidArgument("cache: identity %v has no kind", id.Value)
	}
	if id.Value == nil {
		return invalidArgument("cache: identity of kind %s has no value", id.Kind)
	}
	if !reflect.ValueOf(id.Value).Comparable() {
		return invalidArgument("cache: identity value of type %T is not comparable", id.Value)
	}
	return nil
}

func (id Identity) String() string {
	return fmt.Sprintf("%s(%v)", id.Kind, id.Value)
}

// Entity is a value that can be stored in an EntityCache.
type Entity interface {
	// Identity returns the key the entity is cached under.
	Identity() Identity
}

func identityOf[E Entity](entity E) (Identity, error) {
	if isNil(entity) {
		return Identity{}, invalidArgument("cache: entity is nil")
	}
	id := entity.Identity()
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
