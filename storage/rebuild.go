package storage

import (
	"context"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
)

// PostingSet is one (typeno, termno) context's complete posting list, the
// unit RebuildWriteBatch replaces wholesale rather than merges.
type PostingSet struct {
	TypeNo  ids.Index
	TermNo  ids.Index
	Records []blockformat.PosinfoRecord // sorted ascending by Docno
}

// ForwardSet is one (typeno, docno) context's complete forward-index
// content.
type ForwardSet struct {
	TypeNo  ids.Index
	DocNo   ids.Index
	Records []blockformat.ForwardRecord // sorted ascending by Position
}

// RebuildWriteBatch replaces the stored blocks for every context named in
// postings and forward with exactly the content given, discarding
// whatever blocks already exist there first. This is the bulk-reindex
// counterpart to the merge-based flush a normal Commit performs: a
// rebuild tool that has recomputed a context's content from scratch has
// no use for a merge against the old state, and merging would be wrong
// if the tool is repairing corruption in that old state. It is never
// called from StorageTransaction.Commit and does not touch the
// dictionaries, Variable counters, or DocFrequency — callers that
// rebuild postings are expected to recompute and write those separately
// (DocFrequency equals len(Records) per PostingSet when every record
// carries positions).
//
// The caller's ctx is checked between contexts so a large rebuild can be
// cancelled; once any context has been written into batch, cancellation
// only stops further contexts from being queued — batch.Commit (or
// Cancel) remains the caller's responsibility.
func (s *Storage) RebuildWriteBatch(ctx context.Context, batch kvstore.Batch, postings []PostingSet, forward []ForwardSet) error {
	for _, set := range postings {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := replacePostingSet(s.kv, batch, set); err != nil {
			return err
		}
	}
	for _, set := range forward {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := replaceForwardSet(s.kv, batch, set); err != nil {
			return err
		}
	}
	return nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.Wrap(errs.BackendFailure, ctx.Err(), "storage: rebuild cancelled")
	default:
		return nil
	}
}

func replacePostingSet(kv kvstore.KvStore, batch kvstore.Batch, set PostingSet) error {
	existing, err := scanBlocks(kv, PosinfoBlockContext(set.TypeNo, set.TermNo), blockformat.KindPosting)
	if err != nil {
		return err
	}
	for _, e := range existing {
		batch.Delete(e.key)
	}
	if len(set.Records) == 0 {
		return nil
	}
	chunks := blockformat.SplitPosinfoRecords(set.Records, blockformat.MaxBlockSize)
	for _, chunk := range chunks {
		blk, err := blockformat.EncodePosinfoBlock(chunk)
		if err != nil {
			return err
		}
		batch.Put(PosinfoBlockKey(set.TypeNo, set.TermNo, blk.ID), blockformat.EncodeFrame(blk.Payload))
	}
	return nil
}

func replaceForwardSet(kv kvstore.KvStore, batch kvstore.Batch, set ForwardSet) error {
	existing, err := scanBlocks(kv, ForwardIndexContext(set.TypeNo, set.DocNo), blockformat.KindForward)
	if err != nil {
		return err
	}
	for _, e := range existing {
		batch.Delete(e.key)
	}
	if len(set.Records) == 0 {
		return nil
	}
	chunks := splitForwardRecords(set.Records, blockformat.MaxBlockSize)
	for _, chunk := range chunks {
		blk, err := blockformat.EncodeForwardBlock(chunk)
		if err != nil {
			return err
		}
		batch.Put(ForwardIndexKey(set.TypeNo, set.DocNo, blk.ID), blockformat.EncodeFrame(blk.Payload))
	}
	return nil
}
