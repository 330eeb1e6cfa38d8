package program_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/kvstore/memkv"
	"github.com/strusgo/indexcore/queryeval/program"
	"github.com/strusgo/indexcore/storage"
)

func TestParseFullProgram(t *testing.T) {
	src := `
	// declare a query feature set
	TERM hits "hello" : word ;
	SELECT hits ;
	RESTRICT hits ;
	EVAL BM25 ( k1=1.5, b=0.75, avgdoclen=10 ) WITH hits ;
	SUMMARIZE title = attribute ( name=title ) ;
	`
	prog, err := program.Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Terms, 1)
	require.Equal(t, "hits", prog.Terms[0].Set)
	require.Equal(t, "hello", prog.Terms[0].Value)
	require.Equal(t, "word", prog.Terms[0].Type)
	require.Len(t, prog.Selects, 1)
	require.Len(t, prog.Restricts, 1)
	require.Len(t, prog.Evals, 1)
	require.Equal(t, "BM25", prog.Evals[0].Name)
	require.Len(t, prog.Summarizes, 1)
}

func TestParseRejectsMissingStatementTerminator(t *testing.T) {
	_, err := program.Parse(`SELECT hits`)
	require.Error(t, err)
}

func TestParseAndCompileFormulaExtension(t *testing.T) {
	s, err := storage.Open(memkv.New(), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "hello", 1).AddSearchIndexTerm("word", "world", 2).Done()
	require.NoError(t, txn.Commit())

	prog, err := program.Parse(`
	TERM a "hello" : word ;
	TERM b "world" : word ;
	SELECT a ;
	FORMULA combo ( 2*a, 1*b ) ;
	EVAL combo ( ) WITH a ;
	`)
	require.NoError(t, err)
	require.Len(t, prog.Formulas, 1)
	require.Equal(t, "combo", prog.Formulas[0].Name)
	require.Len(t, prog.Formulas[0].Terms, 2)

	qp, err := program.Compile(prog, s)
	require.NoError(t, err)
	require.Len(t, qp.Ranking, 1)

	results, err := qp.Evaluate(s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 2*1+1*1, results[0].Weight, 1e-9)
}

func TestCompileBuildsRankedQuery(t *testing.T) {
	s, err := storage.Open(memkv.New(), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "hello", 1).SetAttribute("title", "Doc One").Done()
	txn.NewDocument("doc2").AddSearchIndexTerm("word", "other", 1).Done()
	require.NoError(t, txn.Commit())

	prog, err := program.Parse(`
	TERM hits "hello" : word ;
	SELECT hits ;
	EVAL BM25 ( k1=1.5, b=0.75, avgdoclen=1 ) WITH hits ;
	SUMMARIZE title = attribute ( name=title ) ;
	`)
	require.NoError(t, err)

	qp, err := program.Compile(prog, s)
	require.NoError(t, err)
	require.Len(t, qp.Selection, 1)
	require.Len(t, qp.Ranking, 1)
	require.Len(t, qp.Summarizers, 1)

	results, err := qp.Evaluate(s)
	require.NoError(t, err)
	require.Len(t, results, 1)

	doc1, err := s.DocNo("doc1")
	require.NoError(t, err)
	require.Equal(t, doc1, results[0].Docno)
	require.Equal(t, "title", results[0].Summary[0].Name)
	require.Equal(t, "Doc One", results[0].Summary[0].Value)
}
