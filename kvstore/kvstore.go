// Package kvstore defines the ordered key/value store contract the rest
// of indexcore is built against. The store itself — durability,
// replication, on-disk layout — is treated as an external collaborator;
// only the shape every other package needs is specified here, plus one
// concrete binding (kvstore/badgerkv) so the rest of the tree has
// something real to run against in tests.
package kvstore

import "errors"

// ErrKeyNotFound is returned by Get when no value exists for a key. It is
// distinct from a dictionary's default-0 lookup return: callers that need
// that distinction check for this sentinel explicitly.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// KvStore is an ordered byte-string key/value store with cursor-based
// range scans and all-or-nothing write batches.
type KvStore interface {
	// Get reads a single key. Returns ErrKeyNotFound if absent.
	Get(key []byte) ([]byte, error)

	// NewCursor opens a cursor over a point-in-time snapshot if
	// snapshot is true, or over the live store otherwise. The caller
	// must Close it.
	NewCursor(snapshot bool) Cursor

	// NewBatch opens a batch of writes that commit atomically.
	NewBatch() Batch

	// Close releases the store's resources.
	Close() error
}

// Cursor iterates keys in ascending byte order starting from a Seek
// target.
type Cursor interface {
	// Seek positions the cursor at the first key >= target, returning
	// whether such a key exists.
	Seek(target []byte) bool

	// SeekLast positions the cursor at the last key <= target, used for
	// reverse/last-block lookups; it does not check that the key shares
	// target's prefix. Returns whether such a key exists.
	SeekLast(target []byte) bool

	// Next advances to the next key, returning whether one exists.
	Next() bool

	// Valid reports whether the cursor currently sits on a key.
	Valid() bool

	// Key returns the current key. The returned slice is only valid
	// until the next cursor call.
	Key() []byte

	// Value returns the current value. The returned slice is only
	// valid until the next cursor call.
	Value() []byte

	// Close releases the cursor's resources.
	Close()
}

// Batch accumulates writes for an atomic commit.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Commit applies every staged write atomically. On error, no write
	// in the batch is visible.
	Commit() error

	// Cancel discards the batch without applying any write.
	Cancel()
}
