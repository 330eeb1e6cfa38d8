package storage

import (
	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
)

// LoadPosinfoRecords returns every PosinfoRecord stored for (typeno,
// termno), flattened and sorted ascending by Docno, for the postingiter
// package's term iterator to seek over in memory. This reuses the same
// whole-context-scan simplification mergePosinfoContext relies on: the
// block-level skip index blockformat builds per PosinfoBlock is not
// walked block-by-block here, since a single seek across the flattened
// slice is just as cheap at this store's target cardinalities.
func (s *Storage) LoadPosinfoRecords(typeno, termno ids.Index) ([]blockformat.PosinfoRecord, error) {
	entries, err := scanBlocks(s.kv, PosinfoBlockContext(typeno, termno), blockformat.KindPosting)
	if err != nil {
		return nil, err
	}
	var out []blockformat.PosinfoRecord
	for _, e := range entries {
		view, err := blockformat.DecodePosinfoBlock(e.block)
		if err != nil {
			return nil, err
		}
		out = append(out, view.Records...)
	}
	return out, nil
}

// LoadForwardRecords returns every ForwardRecord stored for (typeno,
// docno), sorted ascending by Position — used by summarizers that need a
// document's actual term text at matched positions.
func (s *Storage) LoadForwardRecords(typeno, docno ids.Index) ([]blockformat.ForwardRecord, error) {
	entries, err := scanBlocks(s.kv, ForwardIndexContext(typeno, docno), blockformat.KindForward)
	if err != nil {
		return nil, err
	}
	var out []blockformat.ForwardRecord
	for _, e := range entries {
		recs, err := blockformat.DecodeForwardBlock(e.block)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}
