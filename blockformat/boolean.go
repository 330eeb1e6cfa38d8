package blockformat

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/varint"
)

// Range is an inclusive [From, To] span of element-ids.
type Range struct {
	From ids.Index
	To   ids.Index
}

// BooleanBlockView is a decoded DocListBlock / AclBlock / UserAclBlock:
// a sorted list of disjoint, ascending ranges. This is the dense,
// position-free set representation used to accelerate skip-to-doc when
// only membership (not positions) is needed, and to track ACL
// membership.
type BooleanBlockView struct {
	ID     ids.Index
	Ranges []Range
}

// EncodeBooleanBlock serializes disjoint ascending ranges into a Block
// whose id is the largest element contained.
func EncodeBooleanBlock(ranges []Range) (*Block, error) {
	if len(ranges) == 0 {
		return nil, errors.New("blockformat: cannot encode an empty BooleanBlock")
	}
	for i, r := range ranges {
		if r.From > r.To {
			return nil, errors.Errorf("blockformat: range %d has From > To", i)
		}
		if i > 0 && r.From <= ranges[i-1].To {
			return nil, errors.Errorf("blockformat: ranges not disjoint/ascending at index %d", i)
		}
	}

	payload := make([]byte, 0, len(ranges)*4)
	payload, _ = varint.Pack(payload, uint64(len(ranges)))
	var prevTo ids.Index
	for _, r := range ranges {
		payload, _ = varint.Pack(payload, uint64(r.From-prevTo))
		payload, _ = varint.Pack(payload, uint64(r.To-r.From))
		prevTo = r.To
	}
	return &Block{ID: ranges[len(ranges)-1].To, Kind: KindBoolean, Payload: payload}, nil
}

// DecodeBooleanBlock reverses EncodeBooleanBlock.
func DecodeBooleanBlock(b *Block) (*BooleanBlockView, error) {
	if b.Kind != KindBoolean {
		return nil, errors.Errorf("blockformat: expected KindBoolean, got %v", b.Kind)
	}
	buf := b.Payload
	count, n, err := varint.Unpack(buf)
	if err != nil {
		return nil, errors.Wrap(err, "blockformat: corrupt BooleanBlock count")
	}
	buf = buf[n:]

	ranges := make([]Range, 0, count)
	var prevTo ids.Index
	for i := uint64(0); i < count; i++ {
		fromDelta, n, err := varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt BooleanBlock range from")
		}
		buf = buf[n:]
		span, n, err := varint.Unpack(buf)
		if err != nil {
			return nil, errors.Wrap(err, "blockformat: corrupt BooleanBlock range span")
		}
		buf = buf[n:]
		from := prevTo + ids.Index(fromDelta)
		to := from + ids.Index(span)
		ranges = append(ranges, Range{From: from, To: to})
		prevTo = to
	}
	return &BooleanBlockView{ID: b.ID, Ranges: ranges}, nil
}

// Contains reports whether target falls within one of the view's ranges.
func (v *BooleanBlockView) Contains(target ids.Index) bool {
	idx := v.searchRange(target)
	return idx >= 0
}

// SeekDoc returns the smallest element >= target present in the view, or
// 0 if none.
func (v *BooleanBlockView) SeekDoc(target ids.Index) ids.Index {
	lo, hi := 0, len(v.Ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if v.Ranges[mid].To < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(v.Ranges) {
		return 0
	}
	if v.Ranges[lo].From >= target {
		return v.Ranges[lo].From
	}
	return target
}

func (v *BooleanBlockView) searchRange(target ids.Index) int {
	lo, hi := 0, len(v.Ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if v.Ranges[mid].To < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(v.Ranges) && v.Ranges[lo].From <= target && target <= v.Ranges[lo].To {
		return lo
	}
	return -1
}

// RangesToBitmap loads a set of ranges into a roaring bitmap, the staging
// representation the merge policy uses to combine new elements with an
// existing block's ranges before re-encoding the result as disjoint
// ranges again. Roaring is a natural fit here: sets of docnos/userids are
// exactly what it's built for, and AddRange is O(1) amortized per range
// rather than per element.
func RangesToBitmap(ranges []Range) *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range ranges {
		bm.AddRange(uint64(r.From), uint64(r.To)+1)
	}
	return bm
}

// BitmapToRanges converts a roaring bitmap back to the sorted, disjoint
// Range list the on-disk format requires.
func BitmapToRanges(bm *roaring.Bitmap) []Range {
	if bm.IsEmpty() {
		return nil
	}
	var ranges []Range
	it := bm.Iterator()
	var cur Range
	first := true
	for it.HasNext() {
		v := ids.Index(it.Next())
		if first {
			cur = Range{From: v, To: v}
			first = false
			continue
		}
		if v == cur.To+1 {
			cur.To = v
			continue
		}
		ranges = append(ranges, cur)
		cur = Range{From: v, To: v}
	}
	if !first {
		ranges = append(ranges, cur)
	}
	return ranges
}
