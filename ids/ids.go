// Package ids defines the scalar identifier types shared across the
// storage, block-format, posting-iterator and query-evaluation packages,
// kept separate so none of those packages need to import each other just
// to name a docno.
package ids

// Index is the type of every durable 32-bit positive identifier: typeno,
// termno, docno, userno, attribno, and block-id. Zero is reserved by
// convention ("none" / "no document") wherever a zero value can occur.
type Index uint32

// GlobalCounter is the 64-bit counter type used for document frequency
// and other monotonically-adjusted aggregate values.
type GlobalCounter uint64

// NoDoc is the reserved "no document" docno.
const NoDoc Index = 0

// PositionType is the on-disk width of a within-document position; the
// highest representable position is 65535.
type PositionType = uint16

// MaxPosition is the largest position a document may have a term at.
const MaxPosition = 65535

// UnknownValueHandleStart is the first id in the provisional-id range
// that getOrCreate hands out for not-yet-committed dictionary entries.
// Provisional ids are transaction-local and are rewritten to permanent
// ids at commit; they must never be persisted.
const UnknownValueHandleStart Index = 1 << 31
