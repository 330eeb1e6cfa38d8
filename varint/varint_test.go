package varint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/varint"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 20, 1 << 30, varint.MaxValue}
	for _, v := range values {
		buf, err := varint.Pack(nil, v)
		require.NoError(t, err)

		got, n, err := varint.Unpack(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(buf), n)

		skipped, err := varint.Skip(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), skipped)
	}
}

func TestPackRejectsOverflow(t *testing.T) {
	_, err := varint.Pack(nil, varint.MaxValue+1)
	require.Error(t, err)
}

func TestUnpackLast(t *testing.T) {
	var buf []byte
	var err error
	buf, err = varint.Pack(buf, 42)
	require.NoError(t, err)
	buf, err = varint.Pack(buf, 16384)
	require.NoError(t, err)
	buf, err = varint.Pack(buf, varint.MaxValue)
	require.NoError(t, err)

	got, n, err := varint.UnpackLast(buf)
	require.NoError(t, err)
	require.Equal(t, varint.MaxValue, got)

	rest := buf[:len(buf)-n]
	got, n, err = varint.UnpackLast(rest)
	require.NoError(t, err)
	require.Equal(t, uint64(16384), got)

	rest = rest[:len(rest)-n]
	got, _, err = varint.UnpackLast(rest)
	require.NoError(t, err)
	require.Equal(t, uint64(42), got)
}

func TestUnpackTruncated(t *testing.T) {
	_, _, err := varint.Unpack([]byte{0x80, 0x80, 0x80})
	require.Error(t, err)
}

func TestSequentialScan(t *testing.T) {
	var buf []byte
	var err error
	for _, v := range []uint64{1, 2, 3, 1000000} {
		buf, err = varint.Pack(buf, v)
		require.NoError(t, err)
	}
	var got []uint64
	for len(buf) > 0 {
		v, n, err := varint.Unpack(buf)
		require.NoError(t, err)
		got = append(got, v)
		buf = buf[n:]
	}
	require.Equal(t, []uint64{1, 2, 3, 1000000}, got)
}
