package storage

// TermOccurrence is one position of one term within a document's search
// index, the unit StorageDocument.AddSearchIndexTerm stages.
type TermOccurrence struct {
	TypeName string
	Value    string
	Position uint16
}

// StorageDocument stages one document's insert/update content before
// Done() registers it with its owning transaction. A StorageDocument
// created by DeleteDocument (full delete, DeleteType == "") or
// DeleteDocumentType (partial, DeleteType == the type name) carries no
// content of its own — the transaction resolves its effect against the
// existing InverseTermBlock for the docno at commit.
type StorageDocument struct {
	txn    *StorageTransaction
	docid  string
	delete bool

	// DeleteType, non-empty only for a partial-type delete, names the
	// single search-index type to remove; other types' entries survive,
	// per deleteDocSearchIndexType semantics.
	deleteType string

	terms            []TermOccurrence
	attributes       map[string]string
	attributeDeletes map[string]bool
	metadata         map[string]float64
	aclGrant         []string
	aclRevoke        []string
}

// ReplaceType marks typeName's existing search-index entries for removal
// before this document's own new terms of that type are merged in —
// the combination used by callers that want a type-level reindex rather
// than an incremental add within the same Commit.
func (d *StorageDocument) ReplaceType(typeName string) *StorageDocument {
	d.deleteType = normalizeTypeName(typeName)
	return d
}

// AddSearchIndexTerm stages one position of one term of the given type.
func (d *StorageDocument) AddSearchIndexTerm(typeName, value string, position uint16) *StorageDocument {
	d.terms = append(d.terms, TermOccurrence{TypeName: normalizeTypeName(typeName), Value: value, Position: position})
	return d
}

// SetAttribute stages a string attribute value.
func (d *StorageDocument) SetAttribute(name, value string) *StorageDocument {
	if d.attributes == nil {
		d.attributes = make(map[string]string)
	}
	name = normalizeAttributeName(name)
	d.attributes[name] = value
	delete(d.attributeDeletes, name)
	return d
}

// ClearAttribute stages removal of an attribute.
func (d *StorageDocument) ClearAttribute(name string) *StorageDocument {
	if d.attributeDeletes == nil {
		d.attributeDeletes = make(map[string]bool)
	}
	name = normalizeAttributeName(name)
	d.attributeDeletes[name] = true
	delete(d.attributes, name)
	return d
}

// SetMetaData stages a typed metadata cell value (interpreted against
// the storage's current MetaDataDescription at commit time).
func (d *StorageDocument) SetMetaData(name string, value float64) *StorageDocument {
	if d.metadata == nil {
		d.metadata = make(map[string]float64)
	}
	d.metadata[name] = value
	return d
}

// GrantAccess stages a user access grant; only meaningful when ACL is
// enabled on this storage.
func (d *StorageDocument) GrantAccess(username string) *StorageDocument {
	d.aclGrant = append(d.aclGrant, username)
	return d
}

// RevokeAccess stages a user access revocation.
func (d *StorageDocument) RevokeAccess(username string) *StorageDocument {
	d.aclRevoke = append(d.aclRevoke, username)
	return d
}

// Done registers the staged document with its owning transaction,
// replacing any previous staging for the same docid within this
// transaction.
func (d *StorageDocument) Done() {
	d.txn.docs[d.docid] = d
}
