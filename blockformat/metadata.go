package blockformat

import (
	"math"

	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
)

// CellType is the type of one column of a metadata record.
type CellType byte

const (
	CellInt8 CellType = iota
	CellUint8
	CellInt16
	CellUint16
	CellInt32
	CellUint32
	CellFloat16
	CellFloat32
)

// Width returns the cell's on-disk byte width.
func (t CellType) Width() int {
	switch t {
	case CellInt8, CellUint8:
		return 1
	case CellInt16, CellUint16, CellFloat16:
		return 2
	case CellInt32, CellUint32, CellFloat32:
		return 4
	default:
		return 0
	}
}

func (t CellType) String() string {
	switch t {
	case CellInt8:
		return "i8"
	case CellUint8:
		return "u8"
	case CellInt16:
		return "i16"
	case CellUint16:
		return "u16"
	case CellInt32:
		return "i32"
	case CellUint32:
		return "u32"
	case CellFloat16:
		return "f16"
	case CellFloat32:
		return "f32"
	default:
		return "?"
	}
}

// Column is one named, typed field of a MetaDataDescription.
type Column struct {
	Name   string
	Type   CellType
	Offset int // filled by (*MetaDataDescription).recompute
}

// MetaDataDescription is the single schema record governing the layout
// of every MetaDataBlock in a storage instance.
type MetaDataDescription struct {
	Columns    []Column
	RecordSize int
}

// NewMetaDataDescription builds a description from an ordered column
// list and computes byte offsets/total record size.
func NewMetaDataDescription(columns []Column) *MetaDataDescription {
	d := &MetaDataDescription{Columns: append([]Column(nil), columns...)}
	d.recompute()
	return d
}

func (d *MetaDataDescription) recompute() {
	offset := 0
	for i := range d.Columns {
		d.Columns[i].Offset = offset
		offset += d.Columns[i].Type.Width()
	}
	d.RecordSize = offset
}

// IndexOf returns the column index for name, or -1.
func (d *MetaDataDescription) IndexOf(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RecordsPerBlock is B, the fixed power-of-two record count every
// MetaDataBlock holds.
const RecordsPerBlock = 1024

// DocnoForRecord maps (block-id, record index) to the docno that record
// represents: docno = (blockID-1)*B + i + 1, i.e. block-id is the
// (1-based) block number, matching the family-wide "id = largest
// contained element" convention once block-id is read as blockNumber.
func DocnoForRecord(blockNumber ids.Index, recordIndex int) ids.Index {
	return ids.Index(int(blockNumber-1)*RecordsPerBlock + recordIndex + 1)
}

// BlockNumberForDocno returns the block number and in-block record index
// for docno.
func BlockNumberForDocno(docno ids.Index) (blockNumber ids.Index, recordIndex int) {
	zero := int(docno) - 1
	return ids.Index(zero/RecordsPerBlock) + 1, zero % RecordsPerBlock
}

// MetaDataBlockView is a decoded fixed-size array of RecordsPerBlock
// records, laid out per desc.
type MetaDataBlockView struct {
	ID   ids.Index // block number, per DocnoForRecord/BlockNumberForDocno
	Desc *MetaDataDescription
	Data []byte // RecordsPerBlock * desc.RecordSize bytes
}

// NewMetaDataBlockView allocates a zeroed block for blockNumber.
func NewMetaDataBlockView(blockNumber ids.Index, desc *MetaDataDescription) *MetaDataBlockView {
	return &MetaDataBlockView{ID: blockNumber, Desc: desc, Data: make([]byte, RecordsPerBlock*desc.RecordSize)}
}

func (v *MetaDataBlockView) cellOffset(recordIndex, colIndex int) int {
	return recordIndex*v.Desc.RecordSize + v.Desc.Columns[colIndex].Offset
}

// SetInt writes a signed integer cell, truncated/clamped to the column's
// width by the caller's responsibility; OutOfRange is the caller's to
// raise before calling.
func (v *MetaDataBlockView) SetInt(recordIndex, colIndex int, val int64) {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellInt8:
		v.Data[off] = byte(int8(val))
	case CellInt16:
		putUint16(v.Data[off:], uint16(int16(val)))
	case CellInt32:
		putUint32(v.Data[off:], uint32(int32(val)))
	}
}

// GetInt reads a signed integer cell, sign-extended to int64.
func (v *MetaDataBlockView) GetInt(recordIndex, colIndex int) int64 {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellInt8:
		return int64(int8(v.Data[off]))
	case CellInt16:
		return int64(int16(getUint16(v.Data[off:])))
	case CellInt32:
		return int64(int32(getUint32(v.Data[off:])))
	}
	return 0
}

// SetUint writes an unsigned integer cell.
func (v *MetaDataBlockView) SetUint(recordIndex, colIndex int, val uint64) {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellUint8:
		v.Data[off] = byte(val)
	case CellUint16:
		putUint16(v.Data[off:], uint16(val))
	case CellUint32:
		putUint32(v.Data[off:], uint32(val))
	}
}

// GetUint reads an unsigned integer cell.
func (v *MetaDataBlockView) GetUint(recordIndex, colIndex int) uint64 {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellUint8:
		return uint64(v.Data[off])
	case CellUint16:
		return uint64(getUint16(v.Data[off:]))
	case CellUint32:
		return uint64(getUint32(v.Data[off:]))
	}
	return 0
}

// SetFloat writes a floating cell. For f16, the value is rounded to
// nearest and underflow clamps to zero, per the half-float arithmetic
// contract: all arithmetic is promoted to float32 and only the storage
// representation is 16 bits.
func (v *MetaDataBlockView) SetFloat(recordIndex, colIndex int, val float32) {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellFloat32:
		putUint32(v.Data[off:], math.Float32bits(val))
	case CellFloat16:
		putUint16(v.Data[off:], float32To16(val))
	}
}

// GetFloat reads a floating cell, promoting f16 storage to float32.
func (v *MetaDataBlockView) GetFloat(recordIndex, colIndex int) float32 {
	off := v.cellOffset(recordIndex, colIndex)
	switch v.Desc.Columns[colIndex].Type {
	case CellFloat32:
		return math.Float32frombits(getUint32(v.Data[off:]))
	case CellFloat16:
		return float16To32(getUint16(v.Data[off:]))
	}
	return 0
}

// ToBlock wraps the view's raw bytes as a generic Block for persistence.
func (v *MetaDataBlockView) ToBlock() *Block {
	return &Block{ID: v.ID, Kind: KindMetaData, Payload: v.Data}
}

// MetaDataBlockFromBlock reconstructs a view from a persisted Block,
// validating it matches desc's record size.
func MetaDataBlockFromBlock(b *Block, desc *MetaDataDescription) (*MetaDataBlockView, error) {
	if b.Kind != KindMetaData {
		return nil, errors.Errorf("blockformat: expected KindMetaData, got %v", b.Kind)
	}
	want := RecordsPerBlock * desc.RecordSize
	if len(b.Payload) != want {
		return nil, errors.Errorf("blockformat: MetaDataBlock payload size %d does not match schema record size %d", len(b.Payload), want)
	}
	return &MetaDataBlockView{ID: b.ID, Desc: desc, Data: b.Payload}, nil
}

// TranslateSchema rewrites every record in v from oldDesc to newDesc:
// same-named, same-typed columns are memcpy'd, same-named columns with a
// changed type are numerically converted, and columns absent from
// newDesc are dropped. Used by an alter-table operation; it always
// produces a fresh block, never mutates v in place.
func TranslateSchema(v *MetaDataBlockView, oldDesc, newDesc *MetaDataDescription) *MetaDataBlockView {
	out := NewMetaDataBlockView(v.ID, newDesc)
	for rec := 0; rec < RecordsPerBlock; rec++ {
		for newCol, col := range newDesc.Columns {
			oldCol := oldDesc.IndexOf(col.Name)
			if oldCol < 0 {
				continue
			}
			oldType := oldDesc.Columns[oldCol].Type
			if oldType == col.Type {
				copyCell(out, v, rec, newCol, oldCol)
				continue
			}
			convertCell(out, v, rec, newCol, oldCol, oldType, col.Type)
		}
	}
	return out
}

func copyCell(dst, src *MetaDataBlockView, rec, dstCol, srcCol int) {
	dOff := dst.cellOffset(rec, dstCol)
	sOff := src.cellOffset(rec, srcCol)
	w := dst.Desc.Columns[dstCol].Type.Width()
	copy(dst.Data[dOff:dOff+w], src.Data[sOff:sOff+w])
}

func convertCell(dst, src *MetaDataBlockView, rec, dstCol, srcCol int, srcType, dstType CellType) {
	var asFloat float64
	switch srcType {
	case CellInt8, CellInt16, CellInt32:
		asFloat = float64(src.GetInt(rec, srcCol))
	case CellUint8, CellUint16, CellUint32:
		asFloat = float64(src.GetUint(rec, srcCol))
	case CellFloat16, CellFloat32:
		asFloat = float64(src.GetFloat(rec, srcCol))
	}
	switch dstType {
	case CellInt8, CellInt16, CellInt32:
		dst.SetInt(rec, dstCol, int64(asFloat))
	case CellUint8, CellUint16, CellUint32:
		dst.SetUint(rec, dstCol, uint64(asFloat))
	case CellFloat16, CellFloat32:
		dst.SetFloat(rec, dstCol, float32(asFloat))
	}
}

func putUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func getUint16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// float32To16 rounds-to-nearest and clamps underflow to zero, per the
// half-float storage contract.
func float32To16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	if exp <= 0 {
		// Underflows the half-float range: clamp to signed zero rather
		// than attempt a subnormal representation.
		return sign
	}
	if exp >= 0x1F {
		return sign | 0x7C00 // +-Inf
	}
	// Round to nearest using the top bit of the dropped mantissa.
	roundBit := mant & 0x1000
	mant16 := uint16(mant >> 13)
	result := sign | uint16(exp)<<10 | mant16
	if roundBit != 0 {
		result++
	}
	return result
}

func float16To32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1F
	mant := uint32(h & 0x3FF)

	if exp == 0 {
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal half: normalize into a float32 exponent.
		e := int32(-1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		bits := sign | uint32(127+e-15+1)<<23 | mant<<13
		return math.Float32frombits(bits)
	}
	if exp == 0x1F {
		bits := sign | 0xFF<<23 | mant<<13
		return math.Float32frombits(bits)
	}
	bits := sign | uint32(int32(exp)-15+127)<<23 | mant<<13
	return math.Float32frombits(bits)
}
