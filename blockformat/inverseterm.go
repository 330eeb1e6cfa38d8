package blockformat

import (
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/varint"
)

// InverseTermEntry is one (type, term, frequency, first position) tuple
// naming a term present in a document; the InverseTermBlock for a docno
// is the concatenation of all such entries, used to enumerate "what's in
// this document" for delete and re-index.
type InverseTermEntry struct {
	TypeNo   ids.Index
	TermNo   ids.Index
	FF       uint32
	FirstPos uint16
}

// EncodeInverseTermBlock serializes the entries for a single docno. Order
// is insertion order; there is no element-id ordering invariant here
// because the block's key already pins it to one docno.
func EncodeInverseTermBlock(docno ids.Index, entries []InverseTermEntry) *Block {
	payload := make([]byte, 0, len(entries)*10)
	payload, _ = varint.Pack(payload, uint64(len(entries)))
	for _, e := range entries {
		payload, _ = varint.Pack(payload, uint64(e.TypeNo))
		payload, _ = varint.Pack(payload, uint64(e.TermNo))
		payload, _ = varint.Pack(payload, uint64(e.FF))
		payload, _ = varint.Pack(payload, uint64(e.FirstPos))
	}
	return &Block{ID: docno, Kind: KindInverseTerm, Payload: payload}
}

// DecodeInverseTermBlock reverses EncodeInverseTermBlock.
func DecodeInverseTermBlock(b *Block) ([]InverseTermEntry, error) {
	if b.Kind != KindInverseTerm {
		return nil, errors.Errorf("blockformat: expected KindInverseTerm, got %v", b.Kind)
	}
	buf := b.Payload
	count, n, err := varint.Unpack(buf)
	if err != nil {
		return nil, errors.Wrap(err, "blockformat: corrupt InverseTermBlock count")
	}
	buf = buf[n:]

	entries := make([]InverseTermEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e InverseTermEntry
		var v uint64

		v, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt InverseTermBlock typeno")
		}
		buf = buf[n:]
		e.TypeNo = ids.Index(v)

		v, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt InverseTermBlock termno")
		}
		buf = buf[n:]
		e.TermNo = ids.Index(v)

		v, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt InverseTermBlock ff")
		}
		buf = buf[n:]
		e.FF = uint32(v)

		v, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt InverseTermBlock firstpos")
		}
		buf = buf[n:]
		e.FirstPos = uint16(v)

		entries = append(entries, e)
	}
	return entries, nil
}
