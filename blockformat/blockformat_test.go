package blockformat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
)

func TestPosinfoBlockRoundTrip(t *testing.T) {
	records := []blockformat.PosinfoRecord{
		{Docno: 1, Positions: []uint16{1, 4}},
		{Docno: 2, Positions: []uint16{2}},
		{Docno: 9, Positions: []uint16{1, 2, 3}},
	}
	blk, err := blockformat.EncodePosinfoBlock(records)
	require.NoError(t, err)
	require.Equal(t, ids.Index(9), blk.ID)

	view, err := blockformat.DecodePosinfoBlock(blk)
	require.NoError(t, err)
	require.Equal(t, records, view.Records)

	idx := view.SeekDoc(2)
	require.Equal(t, 1, idx)
	require.Equal(t, ids.Index(2), view.Records[idx].Docno)

	idx = view.SeekDoc(3)
	require.Equal(t, 2, idx)

	idx = view.SeekDoc(10)
	require.Equal(t, -1, idx)
}

func TestPosinfoBlockRejectsNonAscending(t *testing.T) {
	_, err := blockformat.EncodePosinfoBlock([]blockformat.PosinfoRecord{
		{Docno: 2, Positions: []uint16{1}},
		{Docno: 1, Positions: []uint16{1}},
	})
	require.Error(t, err)
}

func TestBooleanBlockRoundTrip(t *testing.T) {
	ranges := []blockformat.Range{{From: 1, To: 3}, {From: 10, To: 10}, {From: 20, To: 25}}
	blk, err := blockformat.EncodeBooleanBlock(ranges)
	require.NoError(t, err)
	require.Equal(t, ids.Index(25), blk.ID)

	view, err := blockformat.DecodeBooleanBlock(blk)
	require.NoError(t, err)
	require.Equal(t, ranges, view.Ranges)

	require.True(t, view.Contains(2))
	require.True(t, view.Contains(10))
	require.False(t, view.Contains(11))
	require.Equal(t, ids.Index(20), view.SeekDoc(15))
	require.Equal(t, ids.Index(0), view.SeekDoc(26))
}

func TestMergeBooleanRanges(t *testing.T) {
	existing := []blockformat.Range{{From: 1, To: 5}}
	merged := blockformat.MergeBooleanRanges(existing, []uint32{6, 7, 20}, []uint32{3})
	want := []blockformat.Range{{From: 1, To: 2}, {From: 4, To: 7}, {From: 20, To: 20}}
	require.Equal(t, want, merged)
}

func TestForwardBlockRoundTrip(t *testing.T) {
	records := []blockformat.ForwardRecord{
		{Position: 1, Term: "the"},
		{Position: 2, Term: "quick"},
		{Position: 5, Term: "fox"},
	}
	blk, err := blockformat.EncodeForwardBlock(records)
	require.NoError(t, err)
	require.Equal(t, ids.Index(5), blk.ID)

	got, err := blockformat.DecodeForwardBlock(blk)
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestInverseTermBlockRoundTrip(t *testing.T) {
	entries := []blockformat.InverseTermEntry{
		{TypeNo: 1, TermNo: 5, FF: 2, FirstPos: 1},
		{TypeNo: 1, TermNo: 9, FF: 1, FirstPos: 4},
	}
	blk := blockformat.EncodeInverseTermBlock(42, entries)
	require.Equal(t, ids.Index(42), blk.ID)

	got, err := blockformat.DecodeInverseTermBlock(blk)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestMetaDataBlockCellsAndSchemaTranslation(t *testing.T) {
	desc := blockformat.NewMetaDataDescription([]blockformat.Column{
		{Name: "year", Type: blockformat.CellInt32},
		{Name: "score", Type: blockformat.CellFloat16},
	})
	view := blockformat.NewMetaDataBlockView(1, desc)
	view.SetInt(0, desc.IndexOf("year"), 2023)
	view.SetFloat(0, desc.IndexOf("score"), 3.5)

	require.Equal(t, int64(2023), view.GetInt(0, desc.IndexOf("year")))
	require.InDelta(t, 3.5, view.GetFloat(0, desc.IndexOf("score")), 1e-3)

	docno := blockformat.DocnoForRecord(1, 0)
	require.Equal(t, ids.Index(1), docno)
	blockNo, rec := blockformat.BlockNumberForDocno(blockformat.RecordsPerBlock + 1)
	require.Equal(t, ids.Index(2), blockNo)
	require.Equal(t, 0, rec)

	newDesc := blockformat.NewMetaDataDescription([]blockformat.Column{
		{Name: "year", Type: blockformat.CellInt32},
		{Name: "score", Type: blockformat.CellFloat32},
	})
	translated := blockformat.TranslateSchema(view, desc, newDesc)
	require.Equal(t, int64(2023), translated.GetInt(0, newDesc.IndexOf("year")))
	require.InDelta(t, 3.5, translated.GetFloat(0, newDesc.IndexOf("score")), 1e-3)
}

func TestFrameRoundTripAndChecksum(t *testing.T) {
	payload := []byte("the quick brown fox the quick brown fox the quick brown fox")
	frame := blockformat.EncodeFrame(payload)
	got, err := blockformat.DecodeFrame(frame)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	frame[len(frame)-1] ^= 0xFF
	_, err = blockformat.DecodeFrame(frame)
	require.Error(t, err)
}
