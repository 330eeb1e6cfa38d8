package storage

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/keymap"
	"github.com/strusgo/indexcore/kvstore"
)

// StorageTransaction accumulates per-document operations and applies
// them to the Storage in one atomic Commit. A transaction is pending
// until Commit or Rollback; Rollback (and an abandoned transaction) never
// touches the KvStore.
type StorageTransaction struct {
	s          *Storage
	docs       map[string]*StorageDocument
	explicitDf map[dfKey]int64

	state txnState
}

type txnState int

const (
	txnPending txnState = iota
	txnCommitted
	txnRolledBack
)

// Rollback discards every staged operation. Safe to call on an already
// rolled-back transaction; fails with TransactionState if already
// committed.
func (t *StorageTransaction) Rollback() error {
	if t.state == txnCommitted {
		return errs.New(errs.TransactionState, "storage: rollback after commit")
	}
	t.state = txnRolledBack
	t.docs = nil
	t.explicitDf = nil
	return nil
}

type typeTermKey struct{ TypeNo, TermNo ids.Index }
type typeTermNames struct{ TypeName, Value string }

// Commit runs the ten-step commit pipeline from the transaction
// pipeline design: acquire the commit lock, resolve dictionary ids,
// rewrite provisional references, flush every staged structure, adjust
// the NofDocs counter, and commit the KV batch atomically. Any error
// before the final KV commit leaves on-disk state and caches untouched;
// the transaction's staging maps survive a failed Commit so the caller
// may retry.
func (t *StorageTransaction) Commit() error {
	if t.state != txnPending {
		return errs.New(errs.TransactionState, "storage: commit of a non-pending transaction")
	}
	s := t.s

	// Step 1: acquire the commit lock.
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	// Step 2: open a KV batch.
	batch := s.kv.NewBatch()
	ok := false
	defer func() {
		if !ok {
			batch.Cancel()
		}
	}()

	// Step 3: assign ids via KeyMap write-batches.
	typeTxn := s.dicts.TermType.NewTxn()
	termTxn := s.dicts.TermValue.NewTxn()
	docTxn := s.dicts.DocId.NewTxn()
	attribTxn := s.dicts.AttributeKey.NewTxn()
	var userTxn *keymap.Txn
	if s.opts.AclEnabled {
		userTxn = s.dicts.UserName.NewTxn()
	}

	docids := make([]string, 0, len(t.docs))
	for docid := range t.docs {
		docids = append(docids, docid)
	}
	sort.Strings(docids)

	type pendingDoc struct {
		doc      *StorageDocument
		docno    ids.Index // provisional or existing, rewritten after dictionary commit
		isNewDoc bool
	}
	pending := make([]pendingDoc, 0, len(docids))

	for _, docid := range docids {
		doc := t.docs[docid]
		if doc.delete && doc.deleteType == "" {
			docno, err := docTxn.LookUp(docid)
			if err != nil {
				return err
			}
			if docno == 0 {
				continue // nothing to delete
			}
			docTxn.DeleteKey(docid)
			pending = append(pending, pendingDoc{doc: doc, docno: docno})
			continue
		}

		var docno ids.Index
		var isNew bool
		if doc.delete { // DeleteDocumentType only: docid must already exist
			dn, err := docTxn.LookUp(docid)
			if err != nil {
				return err
			}
			if dn == 0 {
				continue
			}
			docno = dn
		} else {
			dn, err := docTxn.GetOrCreate(docid)
			if err != nil {
				return err
			}
			docno = dn
			isNew = keymap.IsProvisional(dn)
		}
		pending = append(pending, pendingDoc{doc: doc, docno: docno, isNewDoc: isNew})

		for _, term := range doc.terms {
			if _, err := typeTxn.GetOrCreate(term.TypeName); err != nil {
				return err
			}
			if _, err := termTxn.GetOrCreate(term.Value); err != nil {
				return err
			}
		}
		for name := range doc.attributes {
			if _, err := attribTxn.GetOrCreate(name); err != nil {
				return err
			}
		}
		if s.opts.AclEnabled {
			for _, u := range doc.aclGrant {
				if _, err := userTxn.GetOrCreate(u); err != nil {
					return err
				}
			}
			for _, u := range doc.aclRevoke {
				if _, err := userTxn.GetOrCreate(u); err != nil {
					return err
				}
			}
		}
	}

	typeRewrite, err := typeTxn.Commit(batch)
	if err != nil {
		return err
	}
	termRewrite, err := termTxn.Commit(batch)
	if err != nil {
		return err
	}
	docRewrite, err := docTxn.Commit(batch)
	if err != nil {
		return err
	}
	attribRewrite, err := attribTxn.Commit(batch)
	if err != nil {
		return err
	}
	var userRewrite map[ids.Index]ids.Index
	if s.opts.AclEnabled {
		userRewrite, err = userTxn.Commit(batch)
		if err != nil {
			return err
		}
	}

	// Step 4: rewrite provisional ids everywhere they were staged, and
	// build the in-memory structures each flush step needs.
	postings := make(map[typeTermKey][]blockformat.PosinfoRecord)
	postingNames := make(map[typeTermKey]typeTermNames)
	forwardUpdates := make(map[ids.Index]map[ids.Index][]blockformat.ForwardRecord) // typeno -> docno -> records
	forwardClears := make(map[ids.Index][]ids.Index)                               // typeno -> docnos whose context must be wiped first
	attributeSets := make(map[ids.Index]map[ids.Index]string)                      // docno -> attribno -> value
	attributeDeletes := make(map[ids.Index][]ids.Index)
	metadataUpdates := make(map[ids.Index]map[string]float64)
	aclGrants := make(map[ids.Index][]ids.Index)
	aclRevokes := make(map[ids.Index][]ids.Index)
	newInverse := make(map[ids.Index][]blockformat.InverseTermEntry)
	fullDeletes := make([]ids.Index, 0)

	var nofNew, nofDeleted int

	for _, pd := range pending {
		docno, err := keymap.Rewrite(pd.docno, docRewrite)
		if err != nil {
			return err
		}
		doc := pd.doc

		if doc.delete && doc.deleteType == "" {
			existing, err := readInverseTermBlock(s.kv, docno)
			if err != nil {
				return err
			}
			for _, e := range existing {
				key := typeTermKey{e.TypeNo, e.TermNo}
				postings[key] = append(postings[key], blockformat.PosinfoRecord{Docno: docno})
			}
			if cols := s.meta.Describe().Columns; len(cols) > 0 {
				metadataUpdates[docno] = make(map[string]float64, len(cols))
				for _, c := range cols {
					metadataUpdates[docno][c.Name] = 0
				}
			}
			fullDeletes = append(fullDeletes, docno)
			nofDeleted++
			continue
		}

		var clearedType ids.Index
		if doc.deleteType != "" {
			tn, err := s.dicts.TermType.LookUp(doc.deleteType)
			if err != nil {
				return err
			}
			if tn != 0 {
				clearedType = tn
			}
		}

		if doc.delete { // DeleteDocumentType only, no new content
			existing, err := readInverseTermBlock(s.kv, docno)
			if err != nil {
				return err
			}
			var kept []blockformat.InverseTermEntry
			for _, e := range existing {
				if e.TypeNo == clearedType {
					key := typeTermKey{e.TypeNo, e.TermNo}
					postings[key] = append(postings[key], blockformat.PosinfoRecord{Docno: docno})
					continue
				}
				kept = append(kept, e)
			}
			newInverse[docno] = kept
			if clearedType != 0 {
				forwardClears[clearedType] = append(forwardClears[clearedType], docno)
			}
			continue
		}

		// Insert or update with content.
		newGrouped := make(map[typeTermKey][]uint16)
		forwardByType := make(map[ids.Index][]blockformat.ForwardRecord)
		for _, term := range doc.terms {
			typeno, err := keymap.Rewrite(mustGet(typeTxn, term.TypeName), typeRewrite)
			if err != nil {
				return err
			}
			termno, err := keymap.Rewrite(mustGet(termTxn, term.Value), termRewrite)
			if err != nil {
				return err
			}
			key := typeTermKey{typeno, termno}
			newGrouped[key] = append(newGrouped[key], term.Position)
			postingNames[key] = typeTermNames{TypeName: term.TypeName, Value: term.Value}
			forwardByType[typeno] = append(forwardByType[typeno], blockformat.ForwardRecord{Position: term.Position, Term: term.Value})
		}

		existing, err := readInverseTermBlock(s.kv, docno)
		if err != nil {
			return err
		}
		var kept []blockformat.InverseTermEntry
		for _, e := range existing {
			key := typeTermKey{e.TypeNo, e.TermNo}
			if e.TypeNo == clearedType {
				if _, stillPresent := newGrouped[key]; !stillPresent {
					postings[key] = append(postings[key], blockformat.PosinfoRecord{Docno: docno})
				}
				continue
			}
			kept = append(kept, e)
		}

		for key, positions := range newGrouped {
			sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
			postings[key] = append(postings[key], blockformat.PosinfoRecord{Docno: docno, Positions: positions})
			kept = append(kept, blockformat.InverseTermEntry{
				TypeNo: key.TypeNo, TermNo: key.TermNo,
				FF: uint32(len(positions)), FirstPos: positions[0],
			})
		}
		newInverse[docno] = kept

		if clearedType != 0 {
			forwardClears[clearedType] = append(forwardClears[clearedType], docno)
		}
		for typeno, recs := range forwardByType {
			if forwardUpdates[typeno] == nil {
				forwardUpdates[typeno] = make(map[ids.Index][]blockformat.ForwardRecord)
			}
			forwardUpdates[typeno][docno] = append(forwardUpdates[typeno][docno], recs...)
		}

		for name, val := range doc.attributes {
			attribno, err := keymap.Rewrite(mustGet(attribTxn, name), attribRewrite)
			if err != nil {
				return err
			}
			if attributeSets[docno] == nil {
				attributeSets[docno] = make(map[ids.Index]string)
			}
			attributeSets[docno][attribno] = val
		}
		for name := range doc.attributeDeletes {
			attribno, err := s.dicts.AttributeKey.LookUp(name)
			if err != nil {
				return err
			}
			if attribno != 0 {
				attributeDeletes[docno] = append(attributeDeletes[docno], attribno)
			}
		}
		if len(doc.metadata) > 0 {
			metadataUpdates[docno] = doc.metadata
		}
		if s.opts.AclEnabled {
			for _, u := range doc.aclGrant {
				userno, err := keymap.Rewrite(mustGet(userTxn, u), userRewrite)
				if err != nil {
					return err
				}
				aclGrants[docno] = append(aclGrants[docno], userno)
			}
			for _, u := range doc.aclRevoke {
				userno, err := s.dicts.UserName.LookUp(u)
				if err != nil {
					return err
				}
				if userno != 0 {
					aclRevokes[docno] = append(aclRevokes[docno], userno)
				}
			}
		}
		if pd.isNewDoc {
			nofNew++
		}
	}

	// Step 5: flush attribute and metadata maps; record touched metadata
	// blocks for post-commit cache invalidation.
	for docno, attrs := range attributeSets {
		for attribno, val := range attrs {
			batch.Put(DocAttributeKey(docno, attribno), []byte(val))
		}
	}
	for docno, attribnos := range attributeDeletes {
		for _, attribno := range attribnos {
			batch.Delete(DocAttributeKey(docno, attribno))
		}
	}
	touchedMetaBlocks, err := s.meta.setMetaData(batch, metadataUpdates)
	if err != nil {
		return err
	}

	// Step 6: flush the inverted index; produce merged PosinfoBlocks,
	// write parallel DocListBlock ranges, adjust DocFrequency, append
	// InverseTermBlock updates.
	pendingDf := make(map[dfKey]ids.GlobalCounter)
	type dfDelta struct {
		key   dfKey
		names typeTermNames
		oldDf ids.GlobalCounter
		newDf ids.GlobalCounter
	}
	var dfDeltas []dfDelta

	for key, records := range postings {
		oldDf, err := s.dfCache.getValue(s.kv, key.TypeNo, key.TermNo)
		if err != nil {
			return err
		}
		newDfInt, err := mergePosinfoContext(s.kv, batch, key.TypeNo, key.TermNo, records)
		if err != nil {
			return err
		}
		newDf := ids.GlobalCounter(newDfInt)

		var setElems, clearElems []uint32
		for _, r := range records {
			if len(r.Positions) > 0 {
				setElems = append(setElems, uint32(r.Docno))
			} else {
				clearElems = append(clearElems, uint32(r.Docno))
			}
		}
		if err := mergeBooleanContextSafe(s.kv, batch, DocListBlockPrefix, []ids.Index{key.TypeNo, key.TermNo}, setElems, clearElems); err != nil {
			return err
		}

		k, v, err := stageAbsoluteDf(batch, key.TypeNo, key.TermNo, newDf)
		if err != nil {
			return err
		}
		pendingDf[k] = v
		dfDeltas = append(dfDeltas, dfDelta{key: key, names: postingNames[key], oldDf: oldDf, newDf: newDf})
	}
	for docno, entries := range newInverse {
		writeInverseTermBlock(batch, docno, entries)
	}

	// Step 7: flush forward-index and ACL maps.
	for typeno, docnos := range forwardClears {
		for _, docno := range docnos {
			if err := clearForwardContext(s.kv, batch, typeno, docno); err != nil {
				return err
			}
		}
	}
	for typeno, byDoc := range forwardUpdates {
		for docno, recs := range byDoc {
			if err := mergeForwardContext(s.kv, batch, typeno, docno, recs); err != nil {
				return err
			}
		}
	}
	if s.opts.AclEnabled {
		for docno, grants := range aclGrants {
			if err := updateAcl(s.kv, batch, docno, grants, aclRevokes[docno]); err != nil {
				return err
			}
			delete(aclRevokes, docno)
		}
		for docno, revokes := range aclRevokes {
			if err := updateAcl(s.kv, batch, docno, nil, revokes); err != nil {
				return err
			}
		}
	}

	// Full deletes: the DocId removal is staged via docTxn and the metadata
	// row is zeroed in step 5; remove attributes, ACL, InverseTermBlock.
	for _, docno := range fullDeletes {
		cur := s.kv.NewCursor(false)
		attrPrefix := DocAttributeContext(docno)
		for more := cur.Seek(attrPrefix); more && bytes.HasPrefix(cur.Key(), attrPrefix); more = cur.Next() {
			batch.Delete(append([]byte(nil), cur.Key()...))
		}
		cur.Close()
		writeInverseTermBlock(batch, docno, nil)
		if s.opts.AclEnabled {
			if err := clearAclForDoc(s.kv, batch, docno); err != nil {
				return err
			}
		}
	}

	// Step 8: flush explicit df adjustments.
	for key, delta := range t.explicitDf {
		cur, err := s.dfCache.getValue(s.kv, key.TypeNo, key.TermNo)
		if err != nil {
			return err
		}
		newVal := cur
		if delta >= 0 || ids.GlobalCounter(-delta) <= cur {
			newVal = ids.GlobalCounter(int64(cur) + delta)
		} else {
			newVal = 0
		}
		k, v, err := stageAbsoluteDf(batch, key.TypeNo, key.TermNo, newVal)
		if err != nil {
			return err
		}
		pendingDf[k] = v
	}

	// Step 9: write Variable counters.
	curNofDocs, err := s.vars.GetCounter(CounterNofDocs)
	if err != nil {
		return err
	}
	newNofDocs := curNofDocs + ids.Index(nofNew)
	if ids.Index(nofDeleted) <= newNofDocs {
		newNofDocs -= ids.Index(nofDeleted)
	}
	if err := s.vars.set(batch, CounterNofDocs, newNofDocs); err != nil {
		return err
	}

	// Step 10: commit the KV batch.
	if err := batch.Commit(); err != nil {
		return errs.Wrap(errs.BackendFailure, err, "storage: commit KV batch")
	}
	ok = true

	s.dfCache.writeBatch(pendingDf)
	for _, blockNo := range touchedMetaBlocks {
		s.metaCache.invalidate(blockNo)
	}

	s.statsMu.Lock()
	sink := s.stats
	s.statsMu.Unlock()
	if sink != nil {
		sink.SetNofDocumentsInsertedChange(nofNew - nofDeleted)
		for _, d := range dfDeltas {
			isNew := d.oldDf == 0 && d.newDf > 0
			sink.AddDfChange(d.names.TypeName, d.names.Value, int64(d.newDf)-int64(d.oldDf), isNew)
		}
	}

	t.state = txnCommitted
	return nil
}

// mustGet reads back a name's id from a keymap.Txn that is guaranteed
// (by the staging pass above) to already hold it; the only failure mode
// is a KvStore error, which GetOrCreate would have already surfaced
// during staging.
func mustGet(txn *keymap.Txn, name string) ids.Index {
	id, _ := txn.LookUp(name)
	return id
}

// mergeBooleanContextSafe calls mergeBooleanContext with the same
// arguments, skipping the context scan entirely when there is nothing to
// set or clear.
func mergeBooleanContextSafe(kv kvstore.KvStore, batch kvstore.Batch, prefix Prefix, ctx []ids.Index, setElems, clearElems []uint32) error {
	if len(setElems) == 0 && len(clearElems) == 0 {
		return nil
	}
	return mergeBooleanContext(kv, batch, prefix, ctx, setElems, clearElems)
}

// clearForwardContext deletes every existing ForwardIndexBlock for
// (typeno, docno), used before a ReplaceType reindex of that type.
func clearForwardContext(kv kvstore.KvStore, batch kvstore.Batch, typeno, docno ids.Index) error {
	entries, err := scanBlocks(kv, ForwardIndexContext(typeno, docno), blockformat.KindForward)
	if err != nil {
		return errors.Wrap(err, "storage: clear ForwardIndex context")
	}
	for _, e := range entries {
		batch.Delete(e.key)
	}
	return nil
}

// clearAclForDoc deletes every AclBlock for docno and removes docno from
// every UserAclBlock that referenced it, keeping the ACL symmetric
// invariant across a full document delete.
func clearAclForDoc(kv kvstore.KvStore, batch kvstore.Batch, docno ids.Index) error {
	existing, err := scanBlocks(kv, AclBlockContext(docno), blockformat.KindBoolean)
	if err != nil {
		return err
	}
	var users []ids.Index
	for _, e := range existing {
		view, err := blockformat.DecodeBooleanBlock(e.block)
		if err != nil {
			return err
		}
		for _, r := range view.Ranges {
			for u := r.From; u <= r.To; u++ {
				users = append(users, u)
			}
		}
		batch.Delete(e.key)
	}
	docElem := []uint32{uint32(docno)}
	for _, userno := range users {
		if err := mergeBooleanContext(kv, batch, UserAclBlockPrefix, []ids.Index{userno}, nil, docElem); err != nil {
			return err
		}
	}
	return nil
}
