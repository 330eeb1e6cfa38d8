package storage

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"sync"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/keymap"
	"github.com/strusgo/indexcore/kvstore"
)

// StatsSink receives the statistics peer-message deltas a commit
// produces, published only after the commit's KV batch succeeds. The
// statsproc package's MessageBuilder implements this; storage itself
// has no dependency on the wire format.
type StatsSink interface {
	SetNofDocumentsInsertedChange(delta int)
	AddDfChange(termType, termValue string, increment int64, isNew bool)
}

// Options configures a Storage instance. The zero value is a usable
// ACL-disabled configuration with the default id allocator and modest
// cache sizes.
type Options struct {
	// AclEnabled turns on UserName/AclBlock/UserAclBlock maintenance and
	// ACL filtering. When false, GrantAccess/RevokeAccess on a staged
	// document are ignored.
	AclEnabled bool

	// Allocator is the dictionary id-allocation strategy; nil selects
	// keymap.CounterAllocator.
	Allocator keymap.Allocator

	// MetaDataCacheCost and DfCacheCost bound the two shared ristretto
	// caches, in ristretto cost units (bytes for MetaData, entry count
	// for DocumentFrequency).
	MetaDataCacheCost int64
	DfCacheCost       int64
}

func (o Options) withDefaults() Options {
	if o.Allocator == nil {
		o.Allocator = keymap.CounterAllocator{}
	}
	if o.MetaDataCacheCost == 0 {
		o.MetaDataCacheCost = 32 << 20 // 32MiB of decoded metadata blocks
	}
	if o.DfCacheCost == 0 {
		o.DfCacheCost = 1 << 16
	}
	return o
}

// Storage is the handle every transaction and query iterator shares: it
// owns the KvStore, the committed dictionaries, the metadata schema, and
// the two shared read caches. There are no back-pointers from a
// transaction or iterator to Storage's internals beyond this handle
// itself, per the cyclic-reference redesign in the design notes.
type Storage struct {
	kv   kvstore.KvStore
	opts Options
	log  zerolog.Logger

	vars  *variables
	dicts *dictionaries
	meta  *metaDataTable

	metaCache *metaDataBlockCache
	dfCache   *documentFrequencyCache

	commitMu sync.Mutex

	statsMu sync.Mutex
	stats   StatsSink
}

// Open constructs a Storage over an already-open KvStore.
func Open(kv kvstore.KvStore, opts Options) (*Storage, error) {
	opts = opts.withDefaults()

	meta, err := loadMetaDataTable(kv)
	if err != nil {
		return nil, err
	}
	metaCache, err := newMetaDataBlockCache(opts.MetaDataCacheCost)
	if err != nil {
		return nil, err
	}
	dfCache, err := newDocumentFrequencyCache(opts.DfCacheCost)
	if err != nil {
		return nil, err
	}

	vars := newVariables(kv)
	return &Storage{
		kv:        kv,
		opts:      opts,
		log:       log.With().Str("component", "storage").Logger(),
		vars:      vars,
		dicts:     newDictionaries(kv, vars, opts.Allocator),
		meta:      meta,
		metaCache: metaCache,
		dfCache:   dfCache,
	}, nil
}

// SetStatsSink installs the peer-message sink commits publish df/NofDocs
// changes to. Passing nil disables publication.
func (s *Storage) SetStatsSink(sink StatsSink) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats = sink
}

// Close releases the caches; the KvStore itself is the caller's to
// close.
func (s *Storage) Close() {
	s.metaCache.close()
	s.dfCache.close()
}

// AlterMetaDataSchema replaces the metadata column layout, translating
// every existing DocMetaData block to the new schema and invalidating
// the shared cache on success. It serializes against Commit on the same
// commit lock since both rewrite DocMetaData blocks.
func (s *Storage) AlterMetaDataSchema(columns []blockformat.Column) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	batch := s.kv.NewBatch()
	if err := s.meta.AlterSchema(batch, columns); err != nil {
		batch.Cancel()
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	s.metaCache.close()
	metaCache, err := newMetaDataBlockCache(s.opts.MetaDataCacheCost)
	if err != nil {
		return err
	}
	s.metaCache = metaCache
	return nil
}

// NewTransaction opens a new pending StorageTransaction. Transactions do
// not serialize against each other until Commit.
func (s *Storage) NewTransaction() *StorageTransaction {
	return &StorageTransaction{
		s:          s,
		docs:       make(map[string]*StorageDocument),
		explicitDf: make(map[dfKey]int64),
	}
}

// NewDocument starts staging docid within t.
func (t *StorageTransaction) NewDocument(docid string) *StorageDocument {
	return &StorageDocument{txn: t, docid: docid}
}

// DeleteDocument stages a full delete of docid.
func (t *StorageTransaction) DeleteDocument(docid string) {
	t.docs[docid] = &StorageDocument{txn: t, docid: docid, delete: true}
}

// DeleteDocumentType stages removal of only typeName's search-index
// entries for docid, preserving the rest of the document.
func (t *StorageTransaction) DeleteDocumentType(docid, typeName string) {
	t.docs[docid] = &StorageDocument{txn: t, docid: docid, delete: true, deleteType: normalizeTypeName(typeName)}
}

// AddExplicitDfChange stages a df adjustment distinct from the implicit
// one a posting merge produces (spec §4.4 step 8) — e.g. reconciling
// against a peer's statistics broadcast.
func (t *StorageTransaction) AddExplicitDfChange(typeName, value string, delta int64) error {
	typeno, err := t.s.dicts.TermType.LookUp(normalizeTypeName(typeName))
	if err != nil {
		return err
	}
	termno, err := t.s.dicts.TermValue.LookUp(value)
	if err != nil {
		return err
	}
	if typeno == 0 || termno == 0 {
		return nil // unknown (type,term): nothing to adjust
	}
	t.explicitDf[dfKey{TypeNo: typeno, TermNo: termno}] += delta
	return nil
}

// DocNo resolves a committed docid to its docno, or 0 if absent.
func (s *Storage) DocNo(docid string) (ids.Index, error) { return s.dicts.DocId.LookUp(docid) }

// TypeNo resolves a committed term type name to its typeno, or 0.
func (s *Storage) TypeNo(name string) (ids.Index, error) { return s.dicts.TermType.LookUp(normalizeTypeName(name)) }

// TermNo resolves a committed term value to its termno, or 0.
func (s *Storage) TermNo(value string) (ids.Index, error) { return s.dicts.TermValue.LookUp(value) }

// UserNo resolves a committed user name to its userno, or 0.
func (s *Storage) UserNo(name string) (ids.Index, error) { return s.dicts.UserName.LookUp(name) }

// DocumentFrequency returns the cached/committed df for (typeno, termno).
func (s *Storage) DocumentFrequency(typeno, termno ids.Index) (ids.GlobalCounter, error) {
	return s.dfCache.getValue(s.kv, typeno, termno)
}

// NofDocs returns the current document count.
func (s *Storage) NofDocs() (ids.Index, error) { return s.vars.GetCounter(CounterNofDocs) }

// MetaDataDescription returns the current schema.
func (s *Storage) MetaDataDescription() *blockformat.MetaDataDescription { return s.meta.Describe() }

// metaDataBlock returns the decoded MetaDataBlockView for blockNumber,
// consulting the shared cache first.
func (s *Storage) metaDataBlock(blockNumber ids.Index) (*blockformat.MetaDataBlockView, error) {
	if v, ok := s.metaCache.get(blockNumber); ok {
		return v, nil
	}
	v, err := s.meta.loadBlockView(blockNumber)
	if err != nil {
		return nil, err
	}
	s.metaCache.put(v)
	return v, nil
}

// MetaDataValue reads one column's value for docno as a float32
// (integer columns are widened; this is the shape the query evaluator's
// restriction and weighting code consumes).
func (s *Storage) MetaDataValue(docno ids.Index, column string) (float32, bool, error) {
	desc := s.meta.Describe()
	ci := desc.IndexOf(column)
	if ci < 0 {
		return 0, false, nil
	}
	blockNo, recIdx := blockformat.BlockNumberForDocno(docno)
	view, err := s.metaDataBlock(blockNo)
	if err != nil {
		return 0, false, err
	}
	switch desc.Columns[ci].Type {
	case blockformat.CellInt8, blockformat.CellInt16, blockformat.CellInt32:
		return float32(view.GetInt(recIdx, ci)), true, nil
	case blockformat.CellUint8, blockformat.CellUint16, blockformat.CellUint32:
		return float32(view.GetUint(recIdx, ci)), true, nil
	default:
		return view.GetFloat(recIdx, ci), true, nil
	}
}

// CheckAccess reports whether username may see docno. When ACL is
// disabled on this storage, every document is visible.
func (s *Storage) CheckAccess(docno ids.Index, username string) (bool, error) {
	if !s.opts.AclEnabled || username == "" {
		return true, nil
	}
	userno, err := s.dicts.UserName.LookUp(username)
	if err != nil {
		return false, err
	}
	if userno == 0 {
		return false, nil
	}
	return userHasAccess(s.kv, docno, userno)
}

// AttributeValue reads docno's string value for attribute name, or ""
// and false if absent.
func (s *Storage) AttributeValue(docno ids.Index, name string) (string, bool, error) {
	attribno, err := s.dicts.AttributeKey.LookUp(normalizeAttributeName(name))
	if err != nil || attribno == 0 {
		return "", false, err
	}
	raw, err := s.kv.Get(DocAttributeKey(docno, attribno))
	if err == kvstore.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}
