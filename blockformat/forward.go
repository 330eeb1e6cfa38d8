package blockformat

import (
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/varint"
)

// ForwardRecord is one (position, term) pair within a fixed (type, doc).
type ForwardRecord struct {
	Position uint16
	Term     string
}

// EncodeForwardBlock serializes records (sorted ascending by Position,
// disjoint) into a Block whose id is the largest position present.
func EncodeForwardBlock(records []ForwardRecord) (*Block, error) {
	if len(records) == 0 {
		return nil, errors.New("blockformat: cannot encode an empty ForwardIndexBlock")
	}
	for i := 1; i < len(records); i++ {
		if records[i].Position <= records[i-1].Position {
			return nil, errors.Errorf("blockformat: ForwardIndexBlock positions not strictly ascending at index %d", i)
		}
	}

	payload := make([]byte, 0, len(records)*8)
	payload, _ = varint.Pack(payload, uint64(len(records)))
	var prevPos uint16
	for _, rec := range records {
		payload, _ = varint.Pack(payload, uint64(rec.Position-prevPos))
		payload, _ = varint.Pack(payload, uint64(len(rec.Term)))
		payload = append(payload, rec.Term...)
		prevPos = rec.Position
	}
	return &Block{ID: ids.Index(records[len(records)-1].Position), Kind: KindForward, Payload: payload}, nil
}

// DecodeForwardBlock reverses EncodeForwardBlock.
func DecodeForwardBlock(b *Block) ([]ForwardRecord, error) {
	if b.Kind != KindForward {
		return nil, errors.Errorf("blockformat: expected KindForward, got %v", b.Kind)
	}
	buf := b.Payload
	count, n, err := varint.Unpack(buf)
	if err != nil {
		return nil, errors.Wrap(err, "blockformat: corrupt ForwardIndexBlock count")
	}
	buf = buf[n:]

	records := make([]ForwardRecord, 0, count)
	var prevPos uint16
	for i := uint64(0); i < count; i++ {
		delta, n, err := varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt ForwardIndexBlock position")
		}
		buf = buf[n:]
		termLen, n, err := varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt ForwardIndexBlock term length")
		}
		buf = buf[n:]
		if uint64(len(buf)) < termLen {
			return nil, errors.New("blockformat: truncated ForwardIndexBlock term")
		}
		term := string(buf[:termLen])
		buf = buf[termLen:]

		pos := prevPos + uint16(delta)
		records = append(records, ForwardRecord{Position: pos, Term: term})
		prevPos = pos
	}
	return records, nil
}
