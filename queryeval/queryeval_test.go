package queryeval_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/kvstore/memkv"
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/queryeval"
	"github.com/strusgo/indexcore/storage"
)

func openStorage(t *testing.T, opts storage.Options) *storage.Storage {
	t.Helper()
	s, err := storage.Open(memkv.New(), opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestRestrictionDNF(t *testing.T) {
	s := openStorage(t, storage.Options{})
	require.NoError(t, s.AlterMetaDataSchema([]blockformat.Column{
		{Name: "rank", Type: blockformat.CellFloat32},
		{Name: "year", Type: blockformat.CellUint32},
	}))

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "x", 1).SetMetaData("rank", 1).SetMetaData("year", 2020).Done()
	txn.NewDocument("doc2").AddSearchIndexTerm("word", "x", 1).SetMetaData("rank", 9).SetMetaData("year", 1999).Done()
	require.NoError(t, txn.Commit())

	doc1, err := s.DocNo("doc1")
	require.NoError(t, err)
	doc2, err := s.DocNo("doc2")
	require.NoError(t, err)

	r := queryeval.Restriction{Groups: []queryeval.Group{
		{Clauses: []queryeval.Clause{{Column: "rank", Op: queryeval.OpGreaterEqual, Value: 5}}},
		{Clauses: []queryeval.Clause{{Column: "year", Op: queryeval.OpLess, Value: 2000}}},
	}}

	ok, err := r.Matches(s, doc1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Matches(s, doc2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRestrictionEmptyMatchesEverything(t *testing.T) {
	s := openStorage(t, storage.Options{})
	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "x", 1).Done()
	require.NoError(t, txn.Commit())
	doc1, err := s.DocNo("doc1")
	require.NoError(t, err)

	var r queryeval.Restriction
	ok, err := r.Matches(s, doc1)
	require.NoError(t, err)
	require.True(t, ok)
}

// fakeIterator is a minimal postingiter.Iterator stand-in that always
// reports a fixed docno/frequency/df, for isolating a weighting
// function's math from real posting-list mechanics.
type fakeIterator struct {
	docno ids.Index
	tf    int
	df    ids.GlobalCounter
}

func (f *fakeIterator) SkipDoc(docno ids.Index) ids.Index {
	if docno <= f.docno {
		return f.docno
	}
	return postingiter.NoMatch
}
func (f *fakeIterator) SkipDocCandidate(docno ids.Index) ids.Index { return f.SkipDoc(docno) }
func (f *fakeIterator) SkipPos(pos ids.PositionType) ids.PositionType {
	if pos <= 1 {
		return 1
	}
	return postingiter.NoMatch
}
func (f *fakeIterator) Docno() ids.Index                  { return f.docno }
func (f *fakeIterator) Posno() ids.PositionType           { return 1 }
func (f *fakeIterator) Length() int                       { return 1 }
func (f *fakeIterator) Frequency() int                    { return f.tf }
func (f *fakeIterator) DocumentFrequency() ids.GlobalCounter { return f.df }
func (f *fakeIterator) FeatureID() string                 { return "fake" }

func TestBM25MatchesReferenceComputation(t *testing.T) {
	s := openStorage(t, storage.Options{})
	txn := s.NewTransaction()
	for i := 0; i < 100; i++ {
		txn.NewDocument(docID(i)).AddSearchIndexTerm("word", "x", 1).Done()
	}
	require.NoError(t, txn.Commit())

	doc1, err := s.DocNo(docID(0))
	require.NoError(t, err)

	it := &fakeIterator{docno: doc1, tf: 2, df: 10}
	w := queryeval.BM25{K1: 1.5, B: 0.75, AvgDocLen: 10, Features: []postingiter.Iterator{it}}

	got, err := w.Weight(s, doc1)
	require.NoError(t, err)

	n, df, tf, k1, b, avgdoclen, doclen := 100.0, 10.0, 2.0, 1.5, 0.75, 10.0, 10.0
	idf := math.Log((n - df + 0.5) / (df + 0.5))
	norm := k1 * (1 - b + b*doclen/avgdoclen)
	want := idf * (tf * (k1 + 1)) / (tf + norm)

	require.InDelta(t, want, got, 1e-9)
}

func TestAccumulatorRanksByWeightDescending(t *testing.T) {
	s := openStorage(t, storage.Options{})
	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "x", 1).Done()
	txn.NewDocument("doc2").AddSearchIndexTerm("word", "x", 1).Done()
	txn.NewDocument("doc3").AddSearchIndexTerm("word", "x", 1).Done()
	require.NoError(t, txn.Commit())

	doc1, err := s.DocNo("doc1")
	require.NoError(t, err)
	doc2, err := s.DocNo("doc2")
	require.NoError(t, err)
	doc3, err := s.DocNo("doc3")
	require.NoError(t, err)

	sel1 := &fakeIterator{docno: doc1, tf: 1, df: 1}
	sel2 := &fakeIterator{docno: doc2, tf: 1, df: 1}
	sel3 := &fakeIterator{docno: doc3, tf: 1, df: 1}

	terms := []queryeval.RankedTerm{
		{Weighting: weightByDoc{doc1: 3, doc2: 9, doc3: 1}},
	}

	acc := queryeval.NewAccumulator(s, []postingiter.Iterator{sel1, sel2, sel3}, queryeval.Restriction{}, "", terms, 0, 2)
	results, err := acc.Run()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, doc2, results[0].Docno)
	require.Equal(t, doc1, results[1].Docno)
}

// weightByDoc is a test Weighting that looks up a fixed score per docno.
type weightByDoc map[ids.Index]float64

func (w weightByDoc) Weight(_ *storage.Storage, docno ids.Index) (float64, error) {
	return w[docno], nil
}

func docID(i int) string {
	return "doc" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}
