package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/storage"
)

func TestCommitTwiceFailsWithTransactionState(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "a", 1).Done()
	require.NoError(t, txn.Commit())

	err := txn.Commit()
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TransactionState))
}

func TestRollbackThenCommitFails(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "a", 1).Done()
	require.NoError(t, txn.Rollback())

	err := txn.Commit()
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TransactionState))

	// The document from the rolled-back transaction was never written.
	docno, err := s.DocNo("doc1")
	require.NoError(t, err)
	require.Zero(t, docno)
}

func TestReplaceTypeReindexesOnlyThatType(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").
		AddSearchIndexTerm("title", "alpha", 1).
		AddSearchIndexTerm("body", "beta", 1).
		Done()
	require.NoError(t, txn.Commit())

	txn2 := s.NewTransaction()
	txn2.NewDocument("doc1").
		ReplaceType("title").
		AddSearchIndexTerm("title", "gamma", 1).
		Done()
	require.NoError(t, txn2.Commit())

	titleType, err := s.TypeNo("title")
	require.NoError(t, err)
	bodyType, err := s.TypeNo("body")
	require.NoError(t, err)

	alphaTerm, err := s.TermNo("alpha")
	require.NoError(t, err)
	gammaTerm, err := s.TermNo("gamma")
	require.NoError(t, err)
	betaTerm, err := s.TermNo("beta")
	require.NoError(t, err)

	alphaDf, err := s.DocumentFrequency(titleType, alphaTerm)
	require.NoError(t, err)
	require.Zero(t, alphaDf)

	gammaDf, err := s.DocumentFrequency(titleType, gammaTerm)
	require.NoError(t, err)
	require.EqualValues(t, 1, gammaDf)

	betaDf, err := s.DocumentFrequency(bodyType, betaTerm)
	require.NoError(t, err)
	require.EqualValues(t, 1, betaDf)
}

func TestDeleteDocumentTypePreservesOtherTypes(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").
		AddSearchIndexTerm("title", "alpha", 1).
		AddSearchIndexTerm("body", "beta", 1).
		Done()
	require.NoError(t, txn.Commit())

	txn2 := s.NewTransaction()
	txn2.DeleteDocumentType("doc1", "title")
	require.NoError(t, txn2.Commit())

	titleType, err := s.TypeNo("title")
	require.NoError(t, err)
	bodyType, err := s.TypeNo("body")
	require.NoError(t, err)
	alphaTerm, err := s.TermNo("alpha")
	require.NoError(t, err)
	betaTerm, err := s.TermNo("beta")
	require.NoError(t, err)

	alphaDf, err := s.DocumentFrequency(titleType, alphaTerm)
	require.NoError(t, err)
	require.Zero(t, alphaDf)

	betaDf, err := s.DocumentFrequency(bodyType, betaTerm)
	require.NoError(t, err)
	require.EqualValues(t, 1, betaDf)
}

func TestExplicitDfChangeAdjustsStoredValue(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "cat", 1).Done()
	require.NoError(t, txn.Commit())

	txn2 := s.NewTransaction()
	require.NoError(t, txn2.AddExplicitDfChange("word", "cat", 5))
	require.NoError(t, txn2.Commit())

	typeno, err := s.TypeNo("word")
	require.NoError(t, err)
	termno, err := s.TermNo("cat")
	require.NoError(t, err)
	df, err := s.DocumentFrequency(typeno, termno)
	require.NoError(t, err)
	require.EqualValues(t, 6, df)
}
