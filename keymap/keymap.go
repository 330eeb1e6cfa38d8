// Package keymap implements the bidirectional string<->Index dictionaries
// (KeyMap / KeyMapInv) used for term types, term values, docids, user
// names, and attribute names: a read-only lookup backed by the KvStore,
// a transaction-scoped provisional-id allocator for new names, and a
// commit-time rewrite that assigns stable ids and reports the mapping so
// callers can rewrite every in-memory reference that used a provisional
// id.
package keymap

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
	"github.com/strusgo/indexcore/varint"
)

// KeyCodec builds the KvStore keys for one dictionary's forward
// (name->id) and inverse (id->name) entries. InverseKey may return nil
// for dictionaries that don't maintain an inverse (DocId, UserName,
// AttributeKey all skip it per the key-prefix inventory; only TermType
// and TermValue keep one, for dumps and statistics).
type KeyCodec interface {
	ForwardKey(name string) []byte
	InverseKey(id ids.Index) []byte
}

// maxCachedKeyLen bounds which names the in-memory cache holds: very long
// names (rare, and the ones least likely to repeat) are looked up
// straight from the KvStore every time rather than grown into the cache
// without bound.
const maxCachedKeyLen = 256

// Map is one committed dictionary.
type Map struct {
	kv          kvstore.KvStore
	codec       KeyCodec
	counterName string
	allocator   Allocator
	counters    CounterStore

	mu    sync.RWMutex
	cache map[string]ids.Index
}

// NewMap constructs a dictionary backed by kv, keyed via codec, whose
// permanent ids are drawn from the named Variable-table counter through
// allocator.
func NewMap(kv kvstore.KvStore, codec KeyCodec, counterName string, allocator Allocator, counters CounterStore) *Map {
	if allocator == nil {
		allocator = CounterAllocator{}
	}
	return &Map{
		kv:          kv,
		codec:       codec,
		counterName: counterName,
		allocator:   allocator,
		counters:    counters,
		cache:       make(map[string]ids.Index),
	}
}

// LookUp is a read-only lookup; it returns 0 (not an error) if name is
// absent.
func (m *Map) LookUp(name string) (ids.Index, error) {
	m.mu.RLock()
	if id, ok := m.cache[name]; ok {
		m.mu.RUnlock()
		return id, nil
	}
	m.mu.RUnlock()

	raw, err := m.kv.Get(m.codec.ForwardKey(name))
	if err == kvstore.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "keymap: lookup failed")
	}
	id, _, err := varint.Unpack(raw)
	if err != nil {
		return 0, errors.Wrap(err, "keymap: corrupt id value")
	}
	m.cacheStore(name, ids.Index(id))
	return ids.Index(id), nil
}

func (m *Map) cacheStore(name string, id ids.Index) {
	if len(name) > maxCachedKeyLen {
		return
	}
	m.mu.Lock()
	m.cache[name] = id
	m.mu.Unlock()
}

func (m *Map) cacheInvalidate(name string) {
	m.mu.Lock()
	delete(m.cache, name)
	m.mu.Unlock()
}

// Txn is one transaction's staging area over a Map: newly-requested names
// get a provisional id immediately, resolved to a permanent one only at
// commit.
type Txn struct {
	m *Map

	pending        map[string]ids.Index // name -> provisional id
	deletes        map[string]struct{}
	nextProvisonal ids.Index
}

// NewTxn opens a staging area over m.
func (m *Map) NewTxn() *Txn {
	return &Txn{
		m:              m,
		pending:        make(map[string]ids.Index),
		deletes:        make(map[string]struct{}),
		nextProvisonal: ids.UnknownValueHandleStart,
	}
}

// LookUp checks this transaction's pending names before falling back to
// the committed Map; it never allocates.
func (t *Txn) LookUp(name string) (ids.Index, error) {
	if id, ok := t.pending[name]; ok {
		return id, nil
	}
	return t.m.LookUp(name)
}

// GetOrCreate returns name's existing id (committed or already staged
// this transaction) or allocates a fresh provisional id scoped to this
// transaction.
func (t *Txn) GetOrCreate(name string) (ids.Index, error) {
	if id, ok := t.pending[name]; ok {
		return id, nil
	}
	id, err := t.m.LookUp(name)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	t.nextProvisonal++
	provisional := t.nextProvisonal
	t.pending[name] = provisional
	delete(t.deletes, name)
	return provisional, nil
}

// DeleteKey schedules name for removal at commit.
func (t *Txn) DeleteKey(name string) {
	delete(t.pending, name)
	t.deletes[name] = struct{}{}
}

// IsProvisional reports whether id falls in the provisional range this
// transaction hands out, i.e. it must appear in the rewrite map produced
// by Commit before it can be persisted anywhere.
func IsProvisional(id ids.Index) bool {
	return id >= ids.UnknownValueHandleStart
}

// Commit assigns permanent ids to every pending name, stages the
// corresponding KvStore writes into batch, updates the Map's cache, and
// returns the provisional->permanent rewrite map the caller must apply to
// every staged structure that referenced a provisional id.
func (t *Txn) Commit(batch kvstore.Batch) (map[ids.Index]ids.Index, error) {
	rewrite := make(map[ids.Index]ids.Index, len(t.pending))
	for name, provisional := range t.pending {
		permanent, err := t.m.allocator.Allocate(t.m.counterName, t.m.counters, 1)
		if err != nil {
			return nil, errors.Wrap(err, "keymap: id allocation failed")
		}
		packed, err := varint.Pack(nil, uint64(permanent))
		if err != nil {
			return nil, err
		}
		batch.Put(t.m.codec.ForwardKey(name), packed)
		if inv := t.m.codec.InverseKey(permanent); inv != nil {
			batch.Put(inv, []byte(name))
		}
		t.m.cacheStore(name, permanent)
		rewrite[provisional] = permanent
	}
	for name := range t.deletes {
		id, err := t.m.LookUp(name)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			continue
		}
		batch.Delete(t.m.codec.ForwardKey(name))
		if inv := t.m.codec.InverseKey(id); inv != nil {
			batch.Delete(inv)
		}
		t.m.cacheInvalidate(name)
	}
	return rewrite, nil
}

// Rewrite resolves a possibly-provisional id against rewrite, failing
// with a CorruptData-shaped error if id is provisional but absent from
// the map (the DictCorruption condition: a provisional id referenced by
// some staged structure was never resolved at commit).
func Rewrite(id ids.Index, rewrite map[ids.Index]ids.Index) (ids.Index, error) {
	if !IsProvisional(id) {
		return id, nil
	}
	permanent, ok := rewrite[id]
	if !ok {
		return 0, errors.Errorf("keymap: provisional id %d missing from rewrite map at commit", id)
	}
	return permanent, nil
}
