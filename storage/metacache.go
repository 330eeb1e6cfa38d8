package storage

import (
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
)

// metaDataBlockCache is the shared read cache named in spec §5: readers
// never see a partially-written block because entries are immutable
// values (a decoded view is never mutated after being cached — a
// metadata write always re-decodes, mutates a fresh copy, and only then
// invalidates the old cache entry by key) and invalidation only happens
// for block ids touched by a commit that has already succeeded.
type metaDataBlockCache struct {
	c *ristretto.Cache
}

func newMetaDataBlockCache(maxCost int64) (*metaDataBlockCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "storage: construct MetaDataBlockCache")
	}
	return &metaDataBlockCache{c: c}, nil
}

func (c *metaDataBlockCache) get(blockNumber ids.Index) (*blockformat.MetaDataBlockView, bool) {
	v, ok := c.c.Get(blockNumber)
	if !ok {
		return nil, false
	}
	return v.(*blockformat.MetaDataBlockView), true
}

func (c *metaDataBlockCache) put(view *blockformat.MetaDataBlockView) {
	c.c.Set(view.ID, view, int64(len(view.Data)))
}

// invalidate drops blockNumber from the cache; called only after a
// commit's KV batch has succeeded, per the spec's cache-invalidation
// ordering rule.
func (c *metaDataBlockCache) invalidate(blockNumber ids.Index) {
	c.c.Del(blockNumber)
}

func (c *metaDataBlockCache) close() {
	c.c.Close()
}
