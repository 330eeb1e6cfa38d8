// Package statsproc builds and reads the peer statistics messages a
// storage commit produces: an opaque, framed binary encoding of the
// change in the number of inserted documents plus a body of
// length-prefixed document-frequency deltas. A cluster of cooperating
// indexcore instances exchanges these to keep each other's global df
// estimates (used by BM25's idf term) converged without replicating
// full postings.
package statsproc

import (
	"sync"

	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/varint"
)

type dfKey struct {
	termType, termValue string
}

type dfDelta struct {
	increment int64
	isNew     bool
}

// MessageBuilder accumulates the df/NofDocs deltas a storage.Storage
// commit reports and packs them into framed messages on demand. It
// implements storage.StatsSink; storage itself only sees the interface
// and never depends on the wire format here.
//
// Deltas for the same (termType, termValue) pair accumulate across
// multiple commits until fetched: a term whose df goes 5->6->5 across
// two commits nets to a zero change and is never sent.
type MessageBuilder struct {
	mu sync.Mutex

	nofDocsChange int
	order         []dfKey
	deltas        map[dfKey]*dfDelta

	markNofDocsChange int
	markOrderLen      int
}

// NewMessageBuilder returns an empty builder ready to be installed via
// storage.Storage.SetStatsSink.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{deltas: map[dfKey]*dfDelta{}}
}

// SetNofDocumentsInsertedChange accumulates delta into the staged
// change in the collection's document count.
func (b *MessageBuilder) SetNofDocumentsInsertedChange(delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nofDocsChange += delta
}

// AddDfChange accumulates a document-frequency change for one term.
// isNew is sticky: once a term has been reported as newly created in
// this batch, later merges for the same term keep isNew true.
func (b *MessageBuilder) AddDfChange(termType, termValue string, increment int64, isNew bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := dfKey{termType, termValue}
	d, ok := b.deltas[k]
	if !ok {
		d = &dfDelta{}
		b.deltas[k] = d
		b.order = append(b.order, k)
	}
	d.increment += increment
	if isNew {
		d.isNew = true
	}
}

// Start marks a staging checkpoint. A Rollback that follows discards
// only the SetNofDocumentsInsertedChange/AddDfChange calls made since
// this call, leaving whatever was already staged before it untouched.
// Nothing in the storage package calls Start or Rollback; a commit only
// reaches the builder through the storage.StatsSink methods.
func (b *MessageBuilder) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markNofDocsChange = b.nofDocsChange
	b.markOrderLen = len(b.order)
}

// Rollback discards everything staged since the last Start.
func (b *MessageBuilder) Rollback() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nofDocsChange = b.markNofDocsChange
	for _, k := range b.order[b.markOrderLen:] {
		delete(b.deltas, k)
	}
	b.order = b.order[:b.markOrderLen]
}

// FetchMessage packs up to maxBlockSize bytes of currently staged df
// changes into one framed message and consumes them from the builder.
// It always makes progress when there is anything staged: a single
// change wider than maxBlockSize still goes out alone in its own
// message. It returns ok=false once nothing remains.
//
// The NofDocumentsInsertedChange header rides on the first message of
// a drain (the first call that finds anything to send); every message
// after that in the same drain carries a zero header, since peers sum
// the header field across the messages they receive.
func (b *MessageBuilder) FetchMessage(maxBlockSize int) (msg []byte, ok bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) == 0 && b.nofDocsChange == 0 {
		return nil, false, nil
	}

	var body []byte
	consumed, count := 0, 0
	for _, k := range b.order {
		d := b.deltas[k]
		if d.increment == 0 && !d.isNew {
			consumed++ // netted to zero: dropped, never sent
			continue
		}
		entry, err := encodeDfChange(k.termType, k.termValue, d.increment, d.isNew)
		if err != nil {
			return nil, false, err
		}
		if count > 0 && len(body)+len(entry) > maxBlockSize {
			break
		}
		body = append(body, entry...)
		consumed++
		count++
	}
	if count == 0 && b.nofDocsChange == 0 {
		for _, k := range b.order[:consumed] {
			delete(b.deltas, k)
		}
		b.order = b.order[consumed:]
		return nil, false, nil
	}

	msg, err = varint.Pack(nil, zigzagEncode(int64(b.nofDocsChange)))
	if err != nil {
		return nil, false, errs.Wrap(errs.CorruptData, err, "statsproc: encode message header")
	}
	msg, err = varint.Pack(msg, uint64(count))
	if err != nil {
		return nil, false, errs.Wrap(errs.CorruptData, err, "statsproc: encode message count")
	}
	msg = append(msg, body...)

	b.nofDocsChange = 0
	for _, k := range b.order[:consumed] {
		delete(b.deltas, k)
	}
	b.order = b.order[consumed:]

	return msg, true, nil
}

func encodeDfChange(termType, termValue string, increment int64, isNew bool) ([]byte, error) {
	var out []byte
	var err error
	if out, err = varint.Pack(out, uint64(len(termType))); err != nil {
		return nil, err
	}
	out = append(out, termType...)
	if out, err = varint.Pack(out, uint64(len(termValue))); err != nil {
		return nil, err
	}
	out = append(out, termValue...)
	if out, err = varint.Pack(out, zigzagEncode(increment)); err != nil {
		return nil, err
	}
	if isNew {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out, nil
}

// zigzagEncode maps a signed int64 onto the non-negative range varint
// packs, small magnitudes (positive or negative) to small encodings.
func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
