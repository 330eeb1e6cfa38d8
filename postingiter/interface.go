// Package postingiter implements the posting-iterator algebra every
// query feature compiles to: term leaves plus a set of boolean and
// structural join operators, all sharing one seek-forward contract so
// they compose without the caller ever branching on concrete type.
package postingiter

import "github.com/strusgo/indexcore/ids"

// NoMatch is the sentinel both SkipDoc/SkipDocCandidate and SkipPos
// return in place of a docno or position: zero is never a valid docno or
// a valid within-document position (positions start at 1).
const NoMatch = 0

// Iterator is the contract every posting iterator — leaf or join —
// implements. Callers only ever move forward: there is no rewind, and
// every Skip* call leaves the iterator's Docno()/Posno() reflecting the
// result it just returned (or NoMatch if none was found).
type Iterator interface {
	// SkipDoc returns the first docno >= docno this iterator matches, or
	// NoMatch, and repositions the iterator there.
	SkipDoc(docno ids.Index) ids.Index

	// SkipDocCandidate is SkipDoc's cheaper cousin: it may return a doc
	// that SkipPos later rejects (no real positional match), traded for
	// skipping expensive positional verification until a caller actually
	// needs it. Leaves that have no false-positive source return the
	// same thing SkipDoc would.
	SkipDocCandidate(docno ids.Index) ids.Index

	// SkipPos returns the first position >= pos within the current
	// document this iterator matches, or NoMatch.
	SkipPos(pos ids.PositionType) ids.PositionType

	// Docno, Posno return the iterator's current position, as last left
	// by a Skip* call.
	Docno() ids.Index
	Posno() ids.PositionType

	// Length is the number of elements (positions, for a term leaf; the
	// argument count, for most joins) a summarizer might report for the
	// current match.
	Length() int

	// Frequency is the current document's match count for this
	// iterator (e.g. a term leaf's ff for the current doc).
	Frequency() int

	// DocumentFrequency is a cached, possibly-estimated total document
	// count this iterator could ever match across the whole collection —
	// see the per-operator estimation rules in each join's doc comment.
	DocumentFrequency() ids.GlobalCounter

	// FeatureID is a deterministic fingerprint of this iterator's whole
	// subtree, stable across invocations, used as a cache/statistics key.
	FeatureID() string
}
