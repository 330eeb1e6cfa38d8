package storage

import (
	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
)

// readInverseTermBlock reads and decodes the InverseTermBlock for docno,
// returning nil (not an error) if the document has none.
func readInverseTermBlock(kv kvstore.KvStore, docno ids.Index) ([]blockformat.InverseTermEntry, error) {
	raw, err := kv.Get(InverseTermKey(docno))
	if err == kvstore.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	payload, err := blockformat.DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return blockformat.DecodeInverseTermBlock(&blockformat.Block{ID: docno, Kind: blockformat.KindInverseTerm, Payload: payload})
}

// writeInverseTermBlock stages docno's InverseTermBlock into batch, or
// deletes the key entirely if entries is empty.
func writeInverseTermBlock(batch kvstore.Batch, docno ids.Index, entries []blockformat.InverseTermEntry) {
	key := InverseTermKey(docno)
	if len(entries) == 0 {
		batch.Delete(key)
		return
	}
	blk := blockformat.EncodeInverseTermBlock(docno, entries)
	batch.Put(key, blockformat.EncodeFrame(blk.Payload))
}
