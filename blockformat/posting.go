package blockformat

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/varint"
)

// docIndexNodeSize is the number of consecutive documents one
// DocIndexNode entry covers, giving near-O(1) in-block seeking instead of
// a linear scan of every record.
const docIndexNodeSize = 7

// PosinfoRecord is one (docno, positions) posting within a block.
type PosinfoRecord struct {
	Docno     ids.Index
	Positions []uint16
}

// docIndexNode covers up to docIndexNodeSize consecutive records: Base is
// the first record's docno in the group, Offsets[i] is the byte offset
// (from the start of the record area) of the i-th record in the group,
// valid for i < count.
type docIndexNode struct {
	Base    ids.Index
	Offsets [docIndexNodeSize]uint16
	Count   int
}

// PosinfoBlockView is a decoded PosinfoBlock together with the skip index
// built over it, ready for adaptive seeking by a term iterator.
type PosinfoBlockView struct {
	ID      ids.Index
	Records []PosinfoRecord
	index   []docIndexNode
}

// EncodePosinfoBlock serializes records (which must be sorted ascending
// by Docno, and whose Docno set must be disjoint and non-empty) into a
// Block whose id is the largest docno present.
func EncodePosinfoBlock(records []PosinfoRecord) (*Block, error) {
	if len(records) == 0 {
		return nil, errors.New("blockformat: cannot encode an empty PosinfoBlock")
	}
	for i := 1; i < len(records); i++ {
		if records[i].Docno <= records[i-1].Docno {
			return nil, errors.Errorf("blockformat: PosinfoBlock docnos not strictly ascending at index %d", i)
		}
	}

	recordArea := make([]byte, 0, len(records)*8)
	offsets := make([]uint16, len(records))
	var prevDocno ids.Index
	for i, rec := range records {
		if len(rec.Positions) > 0xFFFF {
			return nil, errors.New("blockformat: too many positions in a single record")
		}
		offsets[i] = uint16(len(recordArea))

		var err error
		rel := uint64(rec.Docno - prevDocno)
		recordArea, err = varint.Pack(recordArea, rel)
		if err != nil {
			return nil, err
		}
		recordArea, err = varint.Pack(recordArea, uint64(len(rec.Positions)))
		if err != nil {
			return nil, err
		}
		var prevPos uint16
		for _, p := range rec.Positions {
			if p <= prevPos && prevPos != 0 {
				return nil, errors.New("blockformat: positions within a record must be strictly ascending")
			}
			recordArea, err = varint.Pack(recordArea, uint64(p))
			if err != nil {
				return nil, err
			}
			prevPos = p
		}
		prevDocno = rec.Docno
	}

	nodes := buildDocIndexNodes(records, offsets)
	header := encodeIndexNodes(nodes)

	payload := make([]byte, 0, len(header)+len(recordArea)+8)
	payload, _ = varint.Pack(payload, uint64(len(records)))
	payload, _ = varint.Pack(payload, uint64(len(nodes)))
	payload = append(payload, header...)
	payload = append(payload, recordArea...)

	return &Block{ID: records[len(records)-1].Docno, Kind: KindPosting, Payload: payload}, nil
}

func buildDocIndexNodes(records []PosinfoRecord, offsets []uint16) []docIndexNode {
	var nodes []docIndexNode
	for i := 0; i < len(records); i += docIndexNodeSize {
		end := i + docIndexNodeSize
		if end > len(records) {
			end = len(records)
		}
		n := docIndexNode{Base: records[i].Docno, Count: end - i}
		for j := i; j < end; j++ {
			n.Offsets[j-i] = offsets[j]
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func encodeIndexNodes(nodes []docIndexNode) []byte {
	var out []byte
	for _, n := range nodes {
		out, _ = varint.Pack(out, uint64(n.Base))
		out, _ = varint.Pack(out, uint64(n.Count))
		for i := 0; i < n.Count; i++ {
			out, _ = varint.Pack(out, uint64(n.Offsets[i]))
		}
	}
	return out
}

// DecodePosinfoBlock decodes a Block previously produced by
// EncodePosinfoBlock into a view ready for seeking.
func DecodePosinfoBlock(b *Block) (*PosinfoBlockView, error) {
	if b.Kind != KindPosting {
		return nil, errors.Errorf("blockformat: expected KindPosting, got %v", b.Kind)
	}
	buf := b.Payload
	nrec, n, err := varint.Unpack(buf)
	if err != nil {
		return nil, errors.Wrap(err, "blockformat: corrupt PosinfoBlock record count")
	}
	buf = buf[n:]
	nnodes, n, err := varint.Unpack(buf)
	if err != nil {
		return nil, errors.Wrap(err, "blockformat: corrupt PosinfoBlock node count")
	}
	buf = buf[n:]

	nodes := make([]docIndexNode, 0, nnodes)
	for i := uint64(0); i < nnodes; i++ {
		var node docIndexNode
		var base, count uint64
		base, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt DocIndexNode base")
		}
		buf = buf[n:]
		count, n, err = varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt DocIndexNode count")
		}
		buf = buf[n:]
		node.Base = ids.Index(base)
		node.Count = int(count)
		for j := 0; j < node.Count; j++ {
			var off uint64
			off, n, err = varint.Unpack(buf)
			if err != nil {
				return nil, errors.Wrap(err, "blockformat: corrupt DocIndexNode offset")
			}
			buf = buf[n:]
			node.Offsets[j] = uint16(off)
		}
		nodes = append(nodes, node)
	}

	recordArea := buf
	records := make([]PosinfoRecord, 0, nrec)
	var prevDocno ids.Index
	cursor := recordArea
	for i := uint64(0); i < nrec; i++ {
		rel, n, err := varint.Unpack(cursor)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt PosinfoBlock record docno")
		}
		cursor = cursor[n:]
		docno := prevDocno + ids.Index(rel)

		ff, n, err := varint.Unpack(cursor)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt PosinfoBlock record ff")
		}
		cursor = cursor[n:]

		positions := make([]uint16, 0, ff)
		for j := uint64(0); j < ff; j++ {
			p, n, err := varint.Unpack(cursor)
			if err != nil {
				return nil, errors.Wrap(err, "blockformat: corrupt PosinfoBlock position")
			}
			cursor = cursor[n:]
			positions = append(positions, uint16(p))
		}
		records = append(records, PosinfoRecord{Docno: docno, Positions: positions})
		prevDocno = docno
	}

	if docno := b.ID; len(records) > 0 && records[len(records)-1].Docno != docno {
		return nil, errors.Errorf("blockformat: PosinfoBlock id %d does not match max docno %d", docno, records[len(records)-1].Docno)
	}

	return &PosinfoBlockView{ID: b.ID, Records: records, index: nodes}, nil
}

// SeekDoc returns the index into Records of the first record with
// Docno >= target, or -1 if none. It uses the DocIndexNode skip array to
// avoid a full linear scan: binary search over node bases locates the
// group, then a short linear scan within the group of at most
// docIndexNodeSize records.
func (v *PosinfoBlockView) SeekDoc(target ids.Index) int {
	if len(v.Records) == 0 {
		return -1
	}
	// Without a skip index (e.g. a freshly merged in-memory block), fall
	// back to plain binary search over Records directly.
	if len(v.index) == 0 {
		i := sort.Search(len(v.Records), func(i int) bool { return v.Records[i].Docno >= target })
		if i == len(v.Records) {
			return -1
		}
		return i
	}

	nodeIdx := sort.Search(len(v.index), func(i int) bool {
		lastInNode := v.nodeLastDocno(i)
		return lastInNode >= target
	})
	if nodeIdx == len(v.index) {
		return -1
	}

	n := v.index[nodeIdx]
	recStart := nodeIdx * docIndexNodeSize
	for i := 0; i < n.Count; i++ {
		if v.Records[recStart+i].Docno >= target {
			return recStart + i
		}
	}
	return -1
}

func (v *PosinfoBlockView) nodeLastDocno(nodeIdx int) ids.Index {
	n := v.index[nodeIdx]
	recStart := nodeIdx * docIndexNodeSize
	return v.Records[recStart+n.Count-1].Docno
}
