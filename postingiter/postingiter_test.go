package postingiter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/postingiter"
)

func term(records ...blockformat.PosinfoRecord) *postingiter.Term {
	return postingiter.NewTerm(1, 1, records, ids.GlobalCounter(len(records)))
}

func rec(docno ids.Index, positions ...uint16) blockformat.PosinfoRecord {
	return blockformat.PosinfoRecord{Docno: docno, Positions: positions}
}

func TestTermSkipDocAndPos(t *testing.T) {
	it := term(rec(2, 1, 5), rec(4, 2), rec(7, 3, 3+1))

	require.EqualValues(t, 4, it.SkipDoc(3))
	require.EqualValues(t, 4, it.Docno())
	require.EqualValues(t, 2, it.SkipPos(0))

	require.EqualValues(t, 7, it.SkipDoc(5))
	require.EqualValues(t, 3, it.SkipPos(0))
	require.EqualValues(t, 4, it.SkipPos(4))

	require.EqualValues(t, 0, it.SkipDoc(8))
}

func TestIntersect(t *testing.T) {
	a := term(rec(1, 1), rec(2, 1), rec(3, 1))
	b := term(rec(2, 1), rec(3, 1), rec(4, 1))

	x := postingiter.NewIntersect([]postingiter.Iterator{a, b})
	require.EqualValues(t, 2, x.SkipDoc(1))
	require.EqualValues(t, 3, x.SkipDoc(3))
	require.EqualValues(t, 0, x.SkipDoc(4))
}

func TestUnion(t *testing.T) {
	a := term(rec(1, 1), rec(3, 1))
	b := term(rec(2, 1), rec(3, 1))

	u := postingiter.NewUnion([]postingiter.Iterator{a, b})
	require.EqualValues(t, 1, u.SkipDoc(1))
	require.EqualValues(t, 2, u.SkipDoc(2))
	require.EqualValues(t, 3, u.SkipDoc(3))
	require.EqualValues(t, 0, u.SkipDoc(4))
}

func TestDifference(t *testing.T) {
	pos := term(rec(1, 1, 2, 3))
	neg := term(rec(1, 2))

	d := postingiter.NewDifference(pos, neg)
	require.EqualValues(t, 1, d.SkipDoc(1))
	require.EqualValues(t, 1, d.SkipPos(0))
	require.EqualValues(t, 3, d.SkipPos(2))
}

func TestSequenceOrderedPhrase(t *testing.T) {
	a := term(rec(1, 1, 10))
	b := term(rec(1, 2, 20))

	s := postingiter.NewSequence(nil, []postingiter.Iterator{a, b}, 1)
	require.EqualValues(t, 1, s.SkipDoc(1))
	require.EqualValues(t, 1, s.SkipPos(0))
}

func TestWithinUnorderedWindow(t *testing.T) {
	a := term(rec(1, 10))
	b := term(rec(1, 5))

	w := postingiter.NewWithin(nil, []postingiter.Iterator{a, b}, 10, false)
	require.EqualValues(t, 1, w.SkipDoc(1))
	require.EqualValues(t, 5, w.SkipPos(0))
}

func TestWithinAcceptsSpanExactlyEqualToRange(t *testing.T) {
	a := term(rec(1, 5))
	b := term(rec(1, 15))

	w := postingiter.NewWithin(nil, []postingiter.Iterator{a, b}, 10, false)
	require.EqualValues(t, 1, w.SkipDoc(1))
	require.EqualValues(t, 5, w.SkipPos(0))
}

func TestWithinRangeZeroRequiresSamePosition(t *testing.T) {
	a := term(rec(1, 5, 9))
	b := term(rec(1, 9))

	w := postingiter.NewWithin(nil, []postingiter.Iterator{a, b}, 0, false)
	require.EqualValues(t, 1, w.SkipDoc(1))
	require.EqualValues(t, 9, w.SkipPos(0))
}

func TestInRangeZeroRejectsDistinctPositions(t *testing.T) {
	a := term(rec(1, 5))
	b := term(rec(1, 6))

	w := postingiter.NewInRange(nil, []postingiter.Iterator{a, b}, 0)
	require.EqualValues(t, 1, w.SkipDoc(1))
	require.EqualValues(t, postingiter.NoMatch, w.SkipPos(0))
}

func TestNullIteratorMatchesNothing(t *testing.T) {
	var n postingiter.Null
	require.EqualValues(t, 0, n.SkipDoc(1))
	require.EqualValues(t, 0, n.SkipPos(0))
	require.EqualValues(t, 0, n.DocumentFrequency())
}
