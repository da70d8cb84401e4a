package store

import (
	"fmt"
	"strconv"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Digest returns the key an identity is stored under. The raw value's Go
// type is part of the digest so int 1 and string "1" never share a key.
func Digest(id cache.Identity) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s\x00%T\x00%v", id.Kind, id.Value, id.Value))
	return strconv.FormatUint(sum, 16)
}

func encode[E cache.Entity](entity E) ([]byte, error) {
	data, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, errors.Wrapf(err, "store: encoding %s", entity.Identity())
	}
	return data, nil
}

func decode[E cache.Entity](data []byte) (E, error) {
	var entity E
	if err := msgpack.Unmarshal(data, &entity); err != nil {
		return entity, errors.Wrap(err, "store: decoding entity")
	}
	return entity, nil
}

// decodeMatching decodes data and reports whether it holds the entity stored
// under id. A mismatch means two identities share a digest.
func decodeMatching[E cache.Entity](data []byte, id cache.Identity) (E, bool, error) {
	entity, err := decode[E](data)
	if err != nil {
		return entity, false, err
	}
	if entity.Identity() != id {
		var zero E
		return zero, false, nil
	}
	return entity, true, nil
}
