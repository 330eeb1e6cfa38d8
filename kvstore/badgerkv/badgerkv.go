// Package badgerkv binds kvstore.KvStore to github.com/dgraph-io/badger/v4,
// an embedded LSM-tree key/value store. It plays the same role the
// original system's LevelDB binding played: a concrete, durable backend
// that the storage layer is tested against, but whose internals (LSM
// compaction, value-log GC, durability knobs) are entirely the backing
// library's concern, not this tree's.
package badgerkv

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/strusgo/indexcore/kvstore"
)

// Store wraps a *badger.DB.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (creating if absent) a badger database at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "badgerkv: open failed")
	}
	return &Store{db: db, log: log.With().Str("component", "badgerkv").Logger()}, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "badgerkv: close failed")
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return kvstore.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == kvstore.ErrKeyNotFound {
		return nil, kvstore.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "badgerkv: get failed")
	}
	return value, nil
}

// NewCursor opens a long-lived, managed read transaction: badger read
// transactions are themselves point-in-time snapshots, so snapshot and
// non-snapshot cursors are identical here — there is no "live, uncommitted
// reads visible" mode to opt out of.
func (s *Store) NewCursor(snapshot bool) kvstore.Cursor {
	txn := s.db.NewTransaction(false)
	return &cursor{txn: txn}
}

func (s *Store) NewBatch() kvstore.Batch {
	return &batch{wb: s.db.NewWriteBatch()}
}

type cursor struct {
	txn     *badger.Txn
	iter    *badger.Iterator
	reverse bool
}

func (c *cursor) ensureIter(reverse bool) {
	if c.iter != nil && c.reverse == reverse {
		return
	}
	if c.iter != nil {
		c.iter.Close()
	}
	c.iter = c.txn.NewIterator(badger.IteratorOptions{Reverse: reverse, PrefetchValues: true})
	c.reverse = reverse
}

func (c *cursor) Seek(target []byte) bool {
	c.ensureIter(false)
	c.iter.Seek(target)
	return c.iter.Valid()
}

func (c *cursor) SeekLast(target []byte) bool {
	c.ensureIter(true)
	c.iter.Seek(target)
	return c.iter.Valid()
}

func (c *cursor) Next() bool {
	if c.iter == nil {
		return false
	}
	c.iter.Next()
	return c.iter.Valid()
}

func (c *cursor) Valid() bool {
	return c.iter != nil && c.iter.Valid()
}

func (c *cursor) Key() []byte {
	return c.iter.Item().KeyCopy(nil)
}

func (c *cursor) Value() []byte {
	v, err := c.iter.Item().ValueCopy(nil)
	if err != nil {
		return nil
	}
	return v
}

func (c *cursor) Close() {
	if c.iter != nil {
		c.iter.Close()
	}
	c.txn.Discard()
}

type batch struct {
	wb  *badger.WriteBatch
	err error
}

func (b *batch) Put(key, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Set(key, value)
}

func (b *batch) Delete(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Delete(key)
}

func (b *batch) Commit() error {
	if b.err != nil {
		b.wb.Cancel()
		return errors.Wrap(b.err, "badgerkv: staging a write failed")
	}
	return errors.Wrap(b.wb.Flush(), "badgerkv: batch commit failed")
}

func (b *batch) Cancel() {
	b.wb.Cancel()
}
