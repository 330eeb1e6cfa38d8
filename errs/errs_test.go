package errs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/errs"
)

func TestKindRoundTrip(t *testing.T) {
	err := errs.Newf(errs.CorruptData, "bad block id %d", 7)
	require.True(t, errs.Is(err, errs.CorruptData))
	require.False(t, errs.Is(err, errs.NotFound))
	require.Contains(t, err.Error(), "CorruptData")
}

func TestWrapPreservesKind(t *testing.T) {
	base := require.AnError
	wrapped := errs.Wrap(errs.BackendFailure, base, "kv get failed")
	require.True(t, errs.Is(wrapped, errs.BackendFailure))

	var ie *errs.Error
	require.ErrorAs(t, wrapped, &ie)
	require.ErrorIs(t, ie.Unwrap(), base)
}

func TestBuffer(t *testing.T) {
	var buf errs.Buffer
	require.True(t, buf.Empty())

	buf.Push(nil)
	require.True(t, buf.Empty())

	buf.Pushf(errs.OutOfRange, "position %d exceeds limit", 70000)
	require.False(t, buf.Empty())
	require.Len(t, buf.Entries(), 1)

	buf.Reset()
	require.True(t, buf.Empty())
}
