package storage

import (
	"sort"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
)

// mergePosinfoContext merges updates (sorted ascending by Docno, may
// include tombstones — zero-position records marking a deletion) into
// the existing PosinfoBlocks for (typeno, termno), staging the result
// into batch. It returns the document frequency after the merge: the
// number of distinct docnos left with a non-empty position list.
func mergePosinfoContext(kv kvstore.KvStore, batch kvstore.Batch, typeno, termno ids.Index, updates []blockformat.PosinfoRecord) (int, error) {
	ctxPrefix := PosinfoBlockContext(typeno, termno)
	existing, err := scanBlocks(kv, ctxPrefix, blockformat.KindPosting)
	if err != nil {
		return 0, err
	}

	var existingRecords []blockformat.PosinfoRecord
	for _, e := range existing {
		view, err := blockformat.DecodePosinfoBlock(e.block)
		if err != nil {
			return 0, err
		}
		existingRecords = append(existingRecords, view.Records...)
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].Docno < updates[j].Docno })
	merged := blockformat.MergePosinfoRecords(existingRecords, updates)

	df := len(merged)
	if len(merged) == 0 {
		for _, e := range existing {
			batch.Delete(e.key)
		}
		return 0, nil
	}

	chunks := blockformat.SplitPosinfoRecords(merged, blockformat.MaxBlockSize)
	freshKeys := make([][]byte, 0, len(chunks))
	freshBlocks := make([]*blockformat.Block, 0, len(chunks))
	for _, chunk := range chunks {
		blk, err := blockformat.EncodePosinfoBlock(chunk)
		if err != nil {
			return 0, err
		}
		freshKeys = append(freshKeys, PosinfoBlockKey(typeno, termno, blk.ID))
		freshBlocks = append(freshBlocks, blk)
	}
	replaceContext(batch, existing, freshKeys, freshBlocks)
	return df, nil
}

// mergeBooleanContext merges setElems/clearElems into the existing
// BooleanBlocks under a (prefix, ctx...) context, re-splitting the
// result into MaxBlockSize-bounded blocks.
func mergeBooleanContext(kv kvstore.KvStore, batch kvstore.Batch, prefix Prefix, ctx []ids.Index, setElems, clearElems []uint32) error {
	ctxPrefix := contextPrefix(prefix, ctx)
	existing, err := scanBlocks(kv, ctxPrefix, blockformat.KindBoolean)
	if err != nil {
		return err
	}

	var existingRanges []blockformat.Range
	for _, e := range existing {
		view, err := blockformat.DecodeBooleanBlock(e.block)
		if err != nil {
			return err
		}
		existingRanges = append(existingRanges, view.Ranges...)
	}

	merged := blockformat.MergeBooleanRanges(existingRanges, setElems, clearElems)
	if len(merged) == 0 {
		for _, e := range existing {
			batch.Delete(e.key)
		}
		return nil
	}

	chunks := splitBooleanRanges(merged, blockformat.MaxBlockSize)
	freshKeys := make([][]byte, 0, len(chunks))
	freshBlocks := make([]*blockformat.Block, 0, len(chunks))
	for _, chunk := range chunks {
		blk, err := blockformat.EncodeBooleanBlock(chunk)
		if err != nil {
			return err
		}
		freshKeys = append(freshKeys, blockKey(prefix, ctx, blk.ID))
		freshBlocks = append(freshBlocks, blk)
	}
	replaceContext(batch, existing, freshKeys, freshBlocks)
	return nil
}

// splitBooleanRanges groups disjoint ascending ranges into chunks whose
// encoded size stays within maxSize, mirroring
// blockformat.SplitPosinfoRecords' size-estimation approach since
// BooleanBlock has no dedicated splitter.
func splitBooleanRanges(ranges []blockformat.Range, maxSize int) [][]blockformat.Range {
	if len(ranges) == 0 {
		return nil
	}
	var chunks [][]blockformat.Range
	start := 0
	size := 0
	for i := range ranges {
		const perRangeEstimate = 10 // two varints, worst case
		if size+perRangeEstimate > maxSize && i > start {
			chunks = append(chunks, ranges[start:i])
			start = i
			size = 0
		}
		size += perRangeEstimate
	}
	chunks = append(chunks, ranges[start:])
	return chunks
}

// mergeForwardContext merges updates into the existing ForwardIndexBlocks
// for (typeno, docno).
func mergeForwardContext(kv kvstore.KvStore, batch kvstore.Batch, typeno, docno ids.Index, updates []blockformat.ForwardRecord) error {
	ctxPrefix := ForwardIndexContext(typeno, docno)
	existing, err := scanBlocks(kv, ctxPrefix, blockformat.KindForward)
	if err != nil {
		return err
	}

	var existingRecords []blockformat.ForwardRecord
	for _, e := range existing {
		recs, err := blockformat.DecodeForwardBlock(e.block)
		if err != nil {
			return err
		}
		existingRecords = append(existingRecords, recs...)
	}

	merged := blockformat.MergeForwardRecords(existingRecords, updates)
	if len(merged) == 0 {
		for _, e := range existing {
			batch.Delete(e.key)
		}
		return nil
	}

	chunks := splitForwardRecords(merged, blockformat.MaxBlockSize)
	freshKeys := make([][]byte, 0, len(chunks))
	freshBlocks := make([]*blockformat.Block, 0, len(chunks))
	for _, chunk := range chunks {
		blk, err := blockformat.EncodeForwardBlock(chunk)
		if err != nil {
			return err
		}
		freshKeys = append(freshKeys, ForwardIndexKey(typeno, docno, blk.ID))
		freshBlocks = append(freshBlocks, blk)
	}
	replaceContext(batch, existing, freshKeys, freshBlocks)
	return nil
}

func splitForwardRecords(records []blockformat.ForwardRecord, maxSize int) [][]blockformat.ForwardRecord {
	if len(records) == 0 {
		return nil
	}
	var chunks [][]blockformat.ForwardRecord
	start := 0
	size := 0
	for i, rec := range records {
		recSize := 6 + len(rec.Term)
		if size+recSize > maxSize && i > start {
			chunks = append(chunks, records[start:i])
			start = i
			size = 0
		}
		size += recSize
	}
	chunks = append(chunks, records[start:])
	return chunks
}
