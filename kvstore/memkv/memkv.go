// Package memkv is an in-memory kvstore.KvStore used by this module's own
// tests so that storage/keymap/blockformat behavior can be exercised
// without standing up badger. It is test tooling, not a production
// backend: no durability, no compaction, a single global mutex.
package memkv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/strusgo/indexcore/kvstore"
)

// Store is a sorted in-memory KvStore.
type Store struct {
	mu   sync.RWMutex
	keys [][]byte
	vals [][]byte
}

func New() *Store {
	return &Store{}
}

func (s *Store) find(key []byte) (int, bool) {
	i := sort.Search(len(s.keys), func(i int) bool { return bytes.Compare(s.keys[i], key) >= 0 })
	if i < len(s.keys) && bytes.Equal(s.keys[i], key) {
		return i, true
	}
	return i, false
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.find(key)
	if !ok {
		return nil, kvstore.ErrKeyNotFound
	}
	out := make([]byte, len(s.vals[i]))
	copy(out, s.vals[i])
	return out, nil
}

func (s *Store) put(key, value []byte) {
	i, ok := s.find(key)
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if ok {
		s.vals[i] = v
		return
	}
	s.keys = append(s.keys, nil)
	s.vals = append(s.vals, nil)
	copy(s.keys[i+1:], s.keys[i:])
	copy(s.vals[i+1:], s.vals[i:])
	s.keys[i] = k
	s.vals[i] = v
}

func (s *Store) del(key []byte) {
	i, ok := s.find(key)
	if !ok {
		return
	}
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	s.vals = append(s.vals[:i], s.vals[i+1:]...)
}

func (s *Store) NewCursor(snapshot bool) kvstore.Cursor {
	s.mu.RLock()
	keys := make([][]byte, len(s.keys))
	vals := make([][]byte, len(s.vals))
	copy(keys, s.keys)
	copy(vals, s.vals)
	s.mu.RUnlock()
	return &cursor{keys: keys, vals: vals, pos: -1}
}

func (s *Store) NewBatch() kvstore.Batch {
	return &batch{store: s}
}

func (s *Store) Close() error { return nil }

type cursor struct {
	keys [][]byte
	vals [][]byte
	pos  int
}

func (c *cursor) Seek(target []byte) bool {
	c.pos = sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], target) >= 0 })
	return c.Valid()
}

func (c *cursor) SeekLast(target []byte) bool {
	i := sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], target) > 0 })
	c.pos = i - 1
	return c.Valid()
}

func (c *cursor) Next() bool {
	c.pos++
	return c.Valid()
}

func (c *cursor) Valid() bool { return c.pos >= 0 && c.pos < len(c.keys) }
func (c *cursor) Key() []byte { return c.keys[c.pos] }
func (c *cursor) Value() []byte { return c.vals[c.pos] }
func (c *cursor) Close() {}

type batch struct {
	store *Store
	puts  map[string][]byte
	dels  map[string]struct{}
	order []op
}

type op struct {
	key    string
	delete bool
}

func (b *batch) ensure() {
	if b.puts == nil {
		b.puts = make(map[string][]byte)
		b.dels = make(map[string]struct{})
	}
}

func (b *batch) Put(key, value []byte) {
	b.ensure()
	k := string(key)
	delete(b.dels, k)
	b.puts[k] = append([]byte(nil), value...)
	b.order = append(b.order, op{key: k, delete: false})
}

func (b *batch) Delete(key []byte) {
	b.ensure()
	k := string(key)
	delete(b.puts, k)
	b.dels[k] = struct{}{}
	b.order = append(b.order, op{key: k, delete: true})
}

func (b *batch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, o := range b.order {
		if o.delete {
			b.store.del([]byte(o.key))
			continue
		}
		if v, ok := b.puts[o.key]; ok {
			b.store.put([]byte(o.key), v)
		}
	}
	return nil
}

func (b *batch) Cancel() {}
