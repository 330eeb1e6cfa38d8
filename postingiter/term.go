package postingiter

import (
	"fmt"
	"sort"

	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
)

// Term is the leaf iterator over a fixed (typeno, termno): it seeks
// across the flattened, Docno-ascending PosinfoRecord slice the storage
// package's LoadPosinfoRecords produces. Near-target seeks (the next
// handful of records) walk linearly; distant seeks binary-search —
// the "adaptive seeking" the posting-iterator contract calls for,
// collapsed here to two strategies rather than the three-tier
// near-hit/follow-block/random-seek split a block-cursor-based
// implementation would need, since this leaf already holds every
// record for its context in memory.
type Term struct {
	typeno, termno ids.Index
	records        []blockformat.PosinfoRecord
	df             ids.GlobalCounter

	idx      int // index into records of the current doc, or len(records)
	posIdx   int // index into records[idx].Positions of the current position
	curDoc   ids.Index
	curPos   ids.PositionType
	nearScan int // how many records a linear probe checks before falling back to binary search
}

// NewTerm builds a Term iterator from already-loaded, Docno-ascending
// records and the term's document frequency.
func NewTerm(typeno, termno ids.Index, records []blockformat.PosinfoRecord, df ids.GlobalCounter) *Term {
	return &Term{typeno: typeno, termno: termno, records: records, df: df, nearScan: 8}
}

func (t *Term) SkipDoc(docno ids.Index) ids.Index {
	if t.idx < len(t.records) && t.records[t.idx].Docno >= docno {
		// Already positioned at or past the target.
	} else {
		// Linear probe for nearby targets, falling back to binary search.
		i := t.idx
		probed := 0
		for i < len(t.records) && t.records[i].Docno < docno && probed < t.nearScan {
			i++
			probed++
		}
		if i < len(t.records) && t.records[i].Docno >= docno {
			t.idx = i
		} else if i >= len(t.records) {
			t.idx = i
		} else {
			t.idx = i + sort.Search(len(t.records)-i, func(k int) bool {
				return t.records[i+k].Docno >= docno
			})
		}
	}
	if t.idx >= len(t.records) {
		t.curDoc, t.curPos, t.posIdx = 0, 0, 0
		return NoMatch
	}
	t.curDoc = t.records[t.idx].Docno
	t.curPos = 0
	t.posIdx = 0
	return t.curDoc
}

// SkipDocCandidate has no false-positive source at this leaf: every
// record in a PosinfoBlock is a real match.
func (t *Term) SkipDocCandidate(docno ids.Index) ids.Index { return t.SkipDoc(docno) }

func (t *Term) SkipPos(pos ids.PositionType) ids.PositionType {
	if t.idx >= len(t.records) {
		return NoMatch
	}
	positions := t.records[t.idx].Positions
	i := t.posIdx
	if i >= len(positions) || positions[i] < pos {
		i = sort.Search(len(positions), func(k int) bool { return positions[k] >= pos })
	}
	if i >= len(positions) {
		t.posIdx = i
		t.curPos = 0
		return NoMatch
	}
	t.posIdx = i
	t.curPos = positions[i]
	return t.curPos
}

func (t *Term) Docno() ids.Index                     { return t.curDoc }
func (t *Term) Posno() ids.PositionType               { return t.curPos }
func (t *Term) DocumentFrequency() ids.GlobalCounter  { return t.df }

func (t *Term) Length() int {
	if t.idx >= len(t.records) {
		return 0
	}
	return len(t.records[t.idx].Positions)
}

func (t *Term) Frequency() int { return t.Length() }

func (t *Term) FeatureID() string {
	return fmt.Sprintf("%d.%d", t.typeno, t.termno)
}
