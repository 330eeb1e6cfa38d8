package statsproc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/statsproc"
)

func TestMessageBuilderRoundTrip(t *testing.T) {
	b := statsproc.NewMessageBuilder()
	b.SetNofDocumentsInsertedChange(3)
	b.AddDfChange("word", "hello", 5, true)
	b.AddDfChange("word", "world", -2, false)

	msg, ok, err := b.FetchMessage(1 << 16)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := statsproc.NewMessageViewer(msg)
	require.NoError(t, err)
	require.Equal(t, 3, v.NofDocumentsInsertedChange())
	require.Equal(t, 2, v.Count())

	var changes []statsproc.DfChange
	for {
		c, ok, err := v.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		changes = append(changes, c)
	}
	require.Equal(t, []statsproc.DfChange{
		{TermType: "word", TermValue: "hello", Increment: 5, IsNew: true},
		{TermType: "word", TermValue: "world", Increment: -2, IsNew: false},
	}, changes)

	_, ok, err = b.FetchMessage(1 << 16)
	require.NoError(t, err)
	require.False(t, ok, "builder should be drained after one fetch")
}

func TestMessageBuilderMergesRepeatedDfChangesForSameTerm(t *testing.T) {
	b := statsproc.NewMessageBuilder()
	b.AddDfChange("word", "hello", 1, true)
	b.AddDfChange("word", "hello", 1, false)
	b.AddDfChange("word", "hello", -1, false)

	msg, ok, err := b.FetchMessage(1 << 16)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := statsproc.NewMessageViewer(msg)
	require.NoError(t, err)
	require.Equal(t, 1, v.Count())

	c, ok, err := v.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), c.Increment)
	require.True(t, c.IsNew, "isnew set on any merged delta stays sticky")
}

func TestMessageBuilderEmptyHasNothingToFetch(t *testing.T) {
	b := statsproc.NewMessageBuilder()
	_, ok, err := b.FetchMessage(1 << 16)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMessageBuilderRollbackDiscardsSinceStart(t *testing.T) {
	b := statsproc.NewMessageBuilder()
	b.AddDfChange("word", "kept", 1, true)
	b.SetNofDocumentsInsertedChange(1)

	b.Start()
	b.AddDfChange("word", "discarded", 9, true)
	b.SetNofDocumentsInsertedChange(100)
	b.Rollback()

	msg, ok, err := b.FetchMessage(1 << 16)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := statsproc.NewMessageViewer(msg)
	require.NoError(t, err)
	require.Equal(t, 1, v.NofDocumentsInsertedChange())
	require.Equal(t, 1, v.Count())

	c, ok, err := v.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", c.TermValue)
}

func TestFetchMessageSplitsAcrossBlockSizeBoundary(t *testing.T) {
	b := statsproc.NewMessageBuilder()
	b.SetNofDocumentsInsertedChange(7)
	b.AddDfChange("word", "alpha", 1, true)
	b.AddDfChange("word", "beta", 1, true)
	b.AddDfChange("word", "gamma", 1, true)

	first, ok, err := b.FetchMessage(1)
	require.NoError(t, err)
	require.True(t, ok)
	v1, err := statsproc.NewMessageViewer(first)
	require.NoError(t, err)
	require.Equal(t, 7, v1.NofDocumentsInsertedChange(), "header rides the first message of a drain")
	require.Equal(t, 1, v1.Count(), "a tiny maxBlockSize still makes progress: one entry per call")

	second, ok, err := b.FetchMessage(1)
	require.NoError(t, err)
	require.True(t, ok)
	v2, err := statsproc.NewMessageViewer(second)
	require.NoError(t, err)
	require.Equal(t, 0, v2.NofDocumentsInsertedChange(), "later messages in the same drain carry a zero header")
	require.Equal(t, 1, v2.Count())

	third, ok, err := b.FetchMessage(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, mustCount(t, third))

	_, ok, err = b.FetchMessage(1)
	require.NoError(t, err)
	require.False(t, ok)
}

func mustCount(t *testing.T, msg []byte) int {
	t.Helper()
	v, err := statsproc.NewMessageViewer(msg)
	require.NoError(t, err)
	return v.Count()
}
