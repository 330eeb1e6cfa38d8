package keymap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/keymap"
	"github.com/strusgo/indexcore/kvstore/memkv"
)

type fakeCodec struct{ prefix byte }

func (c fakeCodec) ForwardKey(name string) []byte {
	return append([]byte{c.prefix, 'f'}, name...)
}
func (c fakeCodec) InverseKey(id ids.Index) []byte {
	return []byte{c.prefix, 'i', byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}

type fakeCounters struct{ store *memkv.Store }

func (f fakeCounters) GetCounter(name string) (ids.Index, error) {
	raw, err := f.store.Get([]byte("counter:" + name))
	if err != nil {
		return 0, nil
	}
	var v uint32
	for i, b := range raw {
		v |= uint32(b) << (8 * i)
	}
	return ids.Index(v), nil
}

func (f fakeCounters) CASCounter(name string, old, new ids.Index) (bool, error) {
	cur, _ := f.GetCounter(name)
	if cur != old {
		return false, nil
	}
	b := f.store.NewBatch()
	b.Put([]byte("counter:"+name), []byte{byte(new), byte(new >> 8), byte(new >> 16), byte(new >> 24)})
	return true, b.Commit() == nil
}

func TestGetOrCreateAndCommitRewrite(t *testing.T) {
	store := memkv.New()
	m := keymap.NewMap(store, fakeCodec{prefix: 1}, "TermNo", keymap.CounterAllocator{}, fakeCounters{store: store})

	txn := m.NewTxn()
	id1, err := txn.GetOrCreate("hello")
	require.NoError(t, err)
	require.True(t, keymap.IsProvisional(id1))

	id2, err := txn.GetOrCreate("hello")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := txn.GetOrCreate("world")
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)

	batch := store.NewBatch()
	rewrite, err := txn.Commit(batch)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	permanent, err := keymap.Rewrite(id1, rewrite)
	require.NoError(t, err)
	require.False(t, keymap.IsProvisional(permanent))

	got, err := m.LookUp("hello")
	require.NoError(t, err)
	require.Equal(t, permanent, got)

	missing, err := m.LookUp("nope")
	require.NoError(t, err)
	require.Equal(t, ids.Index(0), missing)
}

func TestRewriteMissingProvisionalFails(t *testing.T) {
	_, err := keymap.Rewrite(ids.UnknownValueHandleStart+5, map[ids.Index]ids.Index{})
	require.Error(t, err)
}

func TestDeleteKey(t *testing.T) {
	store := memkv.New()
	m := keymap.NewMap(store, fakeCodec{prefix: 2}, "AttribNo", keymap.CounterAllocator{}, fakeCounters{store: store})

	txn := m.NewTxn()
	_, err := txn.GetOrCreate("color")
	require.NoError(t, err)
	batch := store.NewBatch()
	_, err = txn.Commit(batch)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())

	id, err := m.LookUp("color")
	require.NoError(t, err)
	require.NotZero(t, id)

	txn2 := m.NewTxn()
	txn2.DeleteKey("color")
	batch2 := store.NewBatch()
	_, err = txn2.Commit(batch2)
	require.NoError(t, err)
	require.NoError(t, batch2.Commit())

	id, err = m.LookUp("color")
	require.NoError(t, err)
	require.Zero(t, id)
}
