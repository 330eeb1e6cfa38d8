package storage

import (
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
	"github.com/strusgo/indexcore/varint"
)

// dfKey names a (typeno, termno) document-frequency entry.
type dfKey struct {
	TypeNo ids.Index
	TermNo ids.Index
}

// documentFrequencyCache mirrors the DocFrequency key family: getValue
// is a lock-free cache read falling back to the KvStore, writeBatch
// applies a set of new absolute values. Neither takes a lock of its own:
// writeBatch is only called from Commit while the storage's commit lock
// is held, and ristretto's Get/Set are safe for concurrent use.
type documentFrequencyCache struct {
	c *ristretto.Cache
}

func newDocumentFrequencyCache(maxCost int64) (*documentFrequencyCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "storage: construct DocumentFrequencyCache")
	}
	return &documentFrequencyCache{c: c}, nil
}

func (c *documentFrequencyCache) getValue(kv kvstore.KvStore, typeno, termno ids.Index) (ids.GlobalCounter, error) {
	k := dfKey{TypeNo: typeno, TermNo: termno}
	if v, ok := c.c.Get(k); ok {
		return v.(ids.GlobalCounter), nil
	}
	raw, err := kv.Get(DocFrequencyKey(typeno, termno))
	if err == kvstore.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "storage: read DocFrequency")
	}
	val, _, err := varint.Unpack(raw)
	if err != nil {
		return 0, errors.Wrap(err, "storage: corrupt DocFrequency value")
	}
	c.c.Set(k, ids.GlobalCounter(val), 1)
	return ids.GlobalCounter(val), nil
}

// stageAbsoluteDf stages an absolute (already-computed) new df value for
// (typeno, termno) into batch, returning the pending cache update the
// caller must apply only after the enclosing commit's KV batch
// succeeds.
func stageAbsoluteDf(batch kvstore.Batch, typeno, termno ids.Index, val ids.GlobalCounter) (dfKey, ids.GlobalCounter, error) {
	packed, err := varint.Pack(nil, uint64(val))
	if err != nil {
		return dfKey{}, 0, err
	}
	batch.Put(DocFrequencyKey(typeno, termno), packed)
	return dfKey{TypeNo: typeno, TermNo: termno}, val, nil
}

// writeBatch applies pending post-commit cache updates.
func (c *documentFrequencyCache) writeBatch(pending map[dfKey]ids.GlobalCounter) {
	for k, v := range pending {
		c.c.Set(k, v, 1)
	}
}

func (c *documentFrequencyCache) close() {
	c.c.Close()
}
