package storage

import (
	"strings"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/keymap"
	"github.com/strusgo/indexcore/kvstore"
)

// dictionaries holds the five committed keymap.Map instances this
// storage instance maintains, one per entity named in the data model
// with a name<->Index mapping.
type dictionaries struct {
	TermType      *keymap.Map
	TermValue     *keymap.Map
	DocId         *keymap.Map
	UserName      *keymap.Map
	AttributeKey  *keymap.Map
}

type codec struct {
	forward Prefix
	inverse Prefix // 0 if this dictionary keeps no inverse
}

func (c codec) ForwardKey(name string) []byte {
	return nameKey(c.forward, name)
}

func (c codec) InverseKey(id ids.Index) []byte {
	if c.inverse == 0 {
		return nil
	}
	return invKey(c.inverse, id)
}

// newDictionaries wires every dictionary against kv, the shared Variable
// counters, and allocator (the configured id-allocation strategy, default
// or the restored RangeAllocator).
func newDictionaries(kv kvstore.KvStore, counters *variables, allocator keymap.Allocator) *dictionaries {
	return &dictionaries{
		TermType:     keymap.NewMap(kv, codec{forward: TermTypePrefix, inverse: TermTypeInvPrefix}, CounterTypeNo, allocator, counters),
		TermValue:    keymap.NewMap(kv, codec{forward: TermValuePrefix, inverse: TermValueInvPrefix}, CounterTermNo, allocator, counters),
		DocId:        keymap.NewMap(kv, codec{forward: DocIdPrefix}, CounterDocNo, allocator, counters),
		UserName:     keymap.NewMap(kv, codec{forward: UserNamePrefix}, CounterUserNo, allocator, counters),
		AttributeKey: keymap.NewMap(kv, codec{forward: AttributeKeyPrefix}, CounterAttribNo, allocator, counters),
	}
}

// normalizeTypeName lowercases a term type name, per the TermType entity's
// invariant; TermValue is case-sensitive and passes through unchanged.
func normalizeTypeName(name string) string { return strings.ToLower(name) }

// normalizeAttributeName lowercases an attribute key name, per the
// AttributeKey entity's invariant.
func normalizeAttributeName(name string) string { return strings.ToLower(name) }
