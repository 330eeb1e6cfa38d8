package storage

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
	"github.com/strusgo/indexcore/varint"
)

// metaDataTable owns the single MetaDataDescription schema record and
// mediates every read/write of typed per-document metadata cells. The
// storage handle holds exactly one of these; an alter-schema operation
// rewrites every existing block through blockformat.TranslateSchema.
type metaDataTable struct {
	kv kvstore.KvStore

	mu   sync.RWMutex
	desc *blockformat.MetaDataDescription
}

func loadMetaDataTable(kv kvstore.KvStore) (*metaDataTable, error) {
	raw, err := kv.Get(MetaDataDescrKey())
	if err == kvstore.ErrKeyNotFound {
		return &metaDataTable{kv: kv, desc: blockformat.NewMetaDataDescription(nil)}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: read MetaDataDescr")
	}
	desc, err := decodeMetaDataDescription(raw)
	if err != nil {
		return nil, err
	}
	return &metaDataTable{kv: kv, desc: desc}, nil
}

func (t *metaDataTable) Describe() *blockformat.MetaDataDescription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.desc
}

func encodeMetaDataDescription(desc *blockformat.MetaDataDescription) []byte {
	buf, _ := varint.Pack(nil, uint64(len(desc.Columns)))
	for _, c := range desc.Columns {
		buf, _ = varint.Pack(buf, uint64(len(c.Name)))
		buf = append(buf, c.Name...)
		buf = append(buf, byte(c.Type))
	}
	return buf
}

func decodeMetaDataDescription(raw []byte) (*blockformat.MetaDataDescription, error) {
	n, used, err := varint.Unpack(raw)
	if err != nil {
		return nil, errors.Wrap(err, "storage: corrupt MetaDataDescr column count")
	}
	raw = raw[used:]
	columns := make([]blockformat.Column, 0, n)
	for i := uint64(0); i < n; i++ {
		nameLen, u, err := varint.Unpack(raw)
		if err != nil {
			return nil, errors.Wrap(err, "storage: corrupt MetaDataDescr column name length")
		}
		raw = raw[u:]
		if uint64(len(raw)) < nameLen+1 {
			return nil, errors.New("storage: truncated MetaDataDescr")
		}
		name := string(raw[:nameLen])
		raw = raw[nameLen:]
		typ := blockformat.CellType(raw[0])
		raw = raw[1:]
		columns = append(columns, blockformat.Column{Name: name, Type: typ})
	}
	return blockformat.NewMetaDataDescription(columns), nil
}

// AlterSchema replaces the metadata column layout, rewriting every
// existing DocMetaData block through blockformat.TranslateSchema and
// staging the result (and the new description) into batch. Fails with a
// ConfigMismatch-shaped error if newColumns names a column twice.
func (t *metaDataTable) AlterSchema(batch kvstore.Batch, newColumns []blockformat.Column) error {
	seen := make(map[string]bool, len(newColumns))
	for _, c := range newColumns {
		if seen[c.Name] {
			return errs.Newf(errs.ConfigMismatch, "storage: duplicate metadata column %q", c.Name)
		}
		seen[c.Name] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	newDesc := blockformat.NewMetaDataDescription(newColumns)
	existing, err := scanBlocks(t.kv, DocMetaDataContext(), blockformat.KindMetaData)
	if err != nil {
		return err
	}
	for _, e := range existing {
		oldView, err := blockformat.MetaDataBlockFromBlock(e.block, t.desc)
		if err != nil {
			return err
		}
		newView := blockformat.TranslateSchema(oldView, t.desc, newDesc)
		batch.Put(e.key, blockformat.EncodeFrame(newView.ToBlock().Payload))
	}
	batch.Put(MetaDataDescrKey(), encodeMetaDataDescription(newDesc))
	t.desc = newDesc
	return nil
}

// loadBlockView reads (or, if absent, zero-allocates) the MetaDataBlock
// for blockNumber, bypassing the cache — callers that want the shared
// MetaDataBlockCache go through Storage.metaDataBlock instead.
func (t *metaDataTable) loadBlockView(blockNumber ids.Index) (*blockformat.MetaDataBlockView, error) {
	t.mu.RLock()
	desc := t.desc
	t.mu.RUnlock()

	raw, err := t.kv.Get(DocMetaDataKey(blockNumber))
	if err == kvstore.ErrKeyNotFound {
		return blockformat.NewMetaDataBlockView(blockNumber, desc), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: read DocMetaData block")
	}
	payload, err := blockformat.DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return blockformat.MetaDataBlockFromBlock(&blockformat.Block{ID: blockNumber, Kind: blockformat.KindMetaData, Payload: payload}, desc)
}

// setMetaData stages updates (docno -> column name -> value) into batch,
// grouping by the blocks they touch, and returns the touched block
// numbers (in no particular order) for cache invalidation.
func (t *metaDataTable) setMetaData(batch kvstore.Batch, updates map[ids.Index]map[string]float64) ([]ids.Index, error) {
	t.mu.RLock()
	desc := t.desc
	t.mu.RUnlock()

	byBlock := make(map[ids.Index][]ids.Index)
	for docno := range updates {
		blockNo, _ := blockformat.BlockNumberForDocno(docno)
		byBlock[blockNo] = append(byBlock[blockNo], docno)
	}

	var touched []ids.Index
	for blockNo, docnos := range byBlock {
		view, err := t.loadBlockView(blockNo)
		if err != nil {
			return nil, err
		}
		for _, docno := range docnos {
			_, recIdx := blockformat.BlockNumberForDocno(docno)
			for col, val := range updates[docno] {
				ci := desc.IndexOf(col)
				if ci < 0 {
					return nil, errs.Newf(errs.ConfigMismatch, "storage: unknown metadata column %q", col)
				}
				switch desc.Columns[ci].Type {
				case blockformat.CellInt8, blockformat.CellInt16, blockformat.CellInt32:
					view.SetInt(recIdx, ci, int64(val))
				case blockformat.CellUint8, blockformat.CellUint16, blockformat.CellUint32:
					view.SetUint(recIdx, ci, uint64(val))
				default:
					view.SetFloat(recIdx, ci, float32(val))
				}
			}
		}
		batch.Put(DocMetaDataKey(blockNo), blockformat.EncodeFrame(view.ToBlock().Payload))
		touched = append(touched, blockNo)
	}
	return touched, nil
}
