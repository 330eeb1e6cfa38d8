// Package blockformat implements the binary block formats shared by every
// family of blocks the storage layer persists: posting blocks, the
// parallel document-set blocks, forward-index blocks, inverse-term
// blocks, and fixed-width metadata blocks. Every block is a contiguous
// byte buffer identified by the largest element-id it contains, which is
// also the suffix of its KvStore key; that convention lets a cursor find
// the one block that can contain a target with a single seek.
package blockformat

import (
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
)

// MaxBlockSize bounds the payload a merge will grow a block to before it
// splits.
const MaxBlockSize = 1024

// Kind tags what a Block's payload holds, for callers that serialize a
// heterogeneous stream (e.g. dumps) and need to dispatch on it.
type Kind byte

const (
	KindPosting Kind = iota + 1
	KindBoolean
	KindForward
	KindInverseTerm
	KindMetaData
)

// Block is the common frame every block family shares: an id equal to
// the largest element-id it contains, and an opaque, kind-specific
// payload.
type Block struct {
	ID      ids.Index
	Kind    Kind
	Payload []byte
}

// Size returns the encoded payload size, the quantity merge decisions are
// made against.
func (b *Block) Size() int { return len(b.Payload) }

// frameHeaderLen is checksum(8) + compressed-flag(1).
const frameHeaderLen = 9

// EncodeFrame wraps a block's raw payload for on-disk storage: an
// xxhash64 checksum of the uncompressed bytes, a flag saying whether the
// payload that follows is snappy-compressed, and the payload itself.
// Compression is applied only when it actually shrinks the bytes, since
// small blocks (most posting blocks) don't benefit and compressing them
// anyway would waste CPU on every read.
func EncodeFrame(payload []byte) []byte {
	sum := xxhash.Sum64(payload)
	compressed := snappy.Encode(nil, payload)
	useCompression := len(compressed) < len(payload)

	out := make([]byte, 0, frameHeaderLen+len(payload))
	out = appendUint64(out, sum)
	if useCompression {
		out = append(out, 1)
		out = append(out, compressed...)
	} else {
		out = append(out, 0)
		out = append(out, payload...)
	}
	return out
}

// DecodeFrame reverses EncodeFrame and verifies the checksum, returning a
// CorruptData-shaped error on mismatch or truncation.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderLen {
		return nil, errors.Errorf("blockformat: frame too short: %d bytes", len(frame))
	}
	wantSum := readUint64(frame)
	flag := frame[8]
	body := frame[frameHeaderLen:]

	var payload []byte
	var err error
	switch flag {
	case 0:
		payload = body
	case 1:
		payload, err = snappy.Decode(nil, body)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: snappy decode failed")
		}
	default:
		return nil, errors.Errorf("blockformat: unknown compression flag %d", flag)
	}

	gotSum := xxhash.Sum64(payload)
	if gotSum != wantSum {
		return nil, errors.Errorf("blockformat: checksum mismatch: want %x got %x", wantSum, gotSum)
	}
	return payload, nil
}

func appendUint64(dst []byte, v uint64) []byte {
	return append(dst,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func readUint64(buf []byte) uint64 {
	return uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
}
