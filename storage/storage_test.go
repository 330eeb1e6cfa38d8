package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/kvstore/memkv"
	"github.com/strusgo/indexcore/storage"
)

func openStorage(t *testing.T, opts storage.Options) *storage.Storage {
	t.Helper()
	s, err := storage.Open(memkv.New(), opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSingleDocumentInsertAndRead(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").
		AddSearchIndexTerm("word", "hello", 1).
		AddSearchIndexTerm("word", "world", 2).
		SetAttribute("title", "Hello World").
		Done()
	require.NoError(t, txn.Commit())

	docno, err := s.DocNo("doc1")
	require.NoError(t, err)
	require.NotZero(t, docno)

	typeno, err := s.TypeNo("word")
	require.NoError(t, err)
	termno, err := s.TermNo("hello")
	require.NoError(t, err)

	df, err := s.DocumentFrequency(typeno, termno)
	require.NoError(t, err)
	require.EqualValues(t, 1, df)

	nof, err := s.NofDocs()
	require.NoError(t, err)
	require.EqualValues(t, 1, nof)

	val, ok, err := s.AttributeValue(docno, "title")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Hello World", val)
}

func TestDocumentFrequencyAcrossMultipleDocuments(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "cat", 1).Done()
	txn.NewDocument("doc2").AddSearchIndexTerm("word", "cat", 1).Done()
	txn.NewDocument("doc3").AddSearchIndexTerm("word", "dog", 1).Done()
	require.NoError(t, txn.Commit())

	typeno, err := s.TypeNo("word")
	require.NoError(t, err)
	catno, err := s.TermNo("cat")
	require.NoError(t, err)
	dogno, err := s.TermNo("dog")
	require.NoError(t, err)

	catDf, err := s.DocumentFrequency(typeno, catno)
	require.NoError(t, err)
	require.EqualValues(t, 2, catDf)

	dogDf, err := s.DocumentFrequency(typeno, dogno)
	require.NoError(t, err)
	require.EqualValues(t, 1, dogDf)
}

func TestDeleteDocumentRemovesPostingsAndDecrementsNofDocs(t *testing.T) {
	s := openStorage(t, storage.Options{})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").AddSearchIndexTerm("word", "cat", 1).Done()
	txn.NewDocument("doc2").AddSearchIndexTerm("word", "cat", 1).Done()
	require.NoError(t, txn.Commit())

	txn2 := s.NewTransaction()
	txn2.DeleteDocument("doc1")
	require.NoError(t, txn2.Commit())

	typeno, err := s.TypeNo("word")
	require.NoError(t, err)
	termno, err := s.TermNo("cat")
	require.NoError(t, err)

	df, err := s.DocumentFrequency(typeno, termno)
	require.NoError(t, err)
	require.EqualValues(t, 1, df)

	nof, err := s.NofDocs()
	require.NoError(t, err)
	require.EqualValues(t, 1, nof)

	docno, err := s.DocNo("doc1")
	require.NoError(t, err)
	_, ok, err := s.AttributeValue(docno, "title")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMetaDataRestrictionReadsCommittedValues(t *testing.T) {
	s := openStorage(t, storage.Options{})

	require.NoError(t, s.AlterMetaDataSchema([]blockformat.Column{{Name: "rank", Type: blockformat.CellFloat32}}))

	txn := s.NewTransaction()
	txn.NewDocument("doc1").
		AddSearchIndexTerm("word", "x", 1).
		SetMetaData("rank", 4.5).
		Done()
	require.NoError(t, txn.Commit())

	docno, err := s.DocNo("doc1")
	require.NoError(t, err)

	val, ok, err := s.MetaDataValue(docno, "rank")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 4.5, val, 0.001)
}

func TestAccessControlSymmetry(t *testing.T) {
	s := openStorage(t, storage.Options{AclEnabled: true})

	txn := s.NewTransaction()
	txn.NewDocument("doc1").
		AddSearchIndexTerm("word", "secret", 1).
		GrantAccess("alice").
		Done()
	require.NoError(t, txn.Commit())

	docno, err := s.DocNo("doc1")
	require.NoError(t, err)

	ok, err := s.CheckAccess(docno, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CheckAccess(docno, "bob")
	require.NoError(t, err)
	require.False(t, ok)

	txn2 := s.NewTransaction()
	txn2.NewDocument("doc1").RevokeAccess("alice").Done()
	require.NoError(t, txn2.Commit())

	ok, err = s.CheckAccess(docno, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
