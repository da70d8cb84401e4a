// Package store provides cache.BackingStore implementations backed by Redis
// and SQLite.
//
// Entities are serialized with msgpack, so their exported fields must
// round-trip: an entity's Identity computed after decoding has to equal the
// one computed before encoding. Each identity is stored under its [Digest].
//
// Both stores take a context at construction. It bounds every operation
// together with the per-query timeout ([WithQueryTimeout]); cancel it to
// abort a store whose backend stopped answering.
package store
