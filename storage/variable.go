package storage

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore"
	"github.com/strusgo/indexcore/varint"
)

// variables is the Variable key family: a handful of named Index counters
// (TermNo, TypeNo, DocNo, UserNo, AttribNo, NofDocs) that every
// keymap.Map's allocator reads and CASes against. A single mutex
// serializes CAS attempts; in normal operation there is at most one
// active commit per Storage anyway, so this is uncontended.
type variables struct {
	kv kvstore.KvStore
	mu sync.Mutex
}

func newVariables(kv kvstore.KvStore) *variables {
	return &variables{kv: kv}
}

func (v *variables) GetCounter(name string) (ids.Index, error) {
	raw, err := v.kv.Get(VariableKey(name))
	if err == kvstore.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "storage: read Variable counter")
	}
	val, _, err := varint.Unpack(raw)
	if err != nil {
		return 0, errors.Wrap(err, "storage: corrupt Variable counter")
	}
	return ids.Index(val), nil
}

func (v *variables) CASCounter(name string, old, new ids.Index) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cur, err := v.GetCounter(name)
	if err != nil {
		return false, err
	}
	if cur != old {
		return false, nil
	}
	packed, err := varint.Pack(nil, uint64(new))
	if err != nil {
		return false, err
	}
	b := v.kv.NewBatch()
	b.Put(VariableKey(name), packed)
	if err := b.Commit(); err != nil {
		return false, errors.Wrap(err, "storage: write Variable counter")
	}
	return true, nil
}

// set stages name=val directly into batch, used for NofDocs at the end of
// a transaction commit where the final value (not an increment) is known.
func (v *variables) set(batch kvstore.Batch, name string, val ids.Index) error {
	packed, err := varint.Pack(nil, uint64(val))
	if err != nil {
		return err
	}
	batch.Put(VariableKey(name), packed)
	return nil
}
