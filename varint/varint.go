// Package varint packs non-negative integers into a self-delimiting,
// base-128 byte sequence: each byte carries 7 bits of payload in its low
// bits; the high bit is set on every byte except the last one of a value.
// That makes a value decodable walking forward from its first byte, and
// also walking backward from its last byte — unlike encoding/binary's
// Uvarint, which only supports the forward direction — because a byte
// with its high bit clear always marks either the start of the next
// varint or the end of the current one.
package varint

import "github.com/pkg/errors"

// MaxValue is the largest integer this codec represents: 2^48 - 1, seven
// base-128 bytes' worth of payload (7*7 = 49 >= 48 bits).
const MaxValue = (uint64(1) << 48) - 1

// MaxLen is the longest encoding Pack ever produces.
const MaxLen = 7

// Pack appends the varint encoding of u to dst and returns the extended
// slice.
func Pack(dst []byte, u uint64) ([]byte, error) {
	if u > MaxValue {
		return nil, errors.Errorf("varint: value %d exceeds MaxValue %d", u, uint64(MaxValue))
	}
	for u >= 0x80 {
		dst = append(dst, byte(u&0x7F)|0x80)
		u >>= 7
	}
	return append(dst, byte(u)), nil
}

// Unpack decodes one varint starting at buf[0] and returns the value and
// the number of bytes consumed.
func Unpack(buf []byte) (uint64, int, error) {
	var u uint64
	for i := 0; i < len(buf) && i < MaxLen; i++ {
		b := buf[i]
		u |= uint64(b&0x7F) << uint(7*i)
		if b&0x80 == 0 {
			return u, i + 1, nil
		}
	}
	if len(buf) == 0 {
		return 0, 0, errors.New("varint: empty buffer")
	}
	return 0, 0, errors.New("varint: truncated or corrupt encoding, no terminating byte within MaxLen")
}

// Skip advances past one encoded value at buf[0] without decoding it,
// returning the number of bytes it occupies.
func Skip(buf []byte) (int, error) {
	for i := 0; i < len(buf) && i < MaxLen; i++ {
		if buf[i]&0x80 == 0 {
			return i + 1, nil
		}
	}
	if len(buf) == 0 {
		return 0, errors.New("varint: empty buffer")
	}
	return 0, errors.New("varint: truncated or corrupt encoding, no terminating byte within MaxLen")
}

// UnpackLast decodes the varint whose encoding ends at buf[len(buf)-1],
// scanning backward up to MaxLen bytes to find its first byte. Used by
// block readers that index a record from its tail.
func UnpackLast(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, errors.New("varint: empty buffer")
	}
	end := len(buf)
	start := end - 1
	limit := end - MaxLen
	if limit < 0 {
		limit = 0
	}
	for start > limit && buf[start-1]&0x80 != 0 {
		start--
	}
	u, n, err := Unpack(buf[start:end])
	if err != nil {
		return 0, 0, err
	}
	if n != end-start {
		return 0, 0, errors.New("varint: backward scan misaligned with forward decode")
	}
	return u, n, nil
}
