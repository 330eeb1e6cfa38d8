package postingiter

import "github.com/strusgo/indexcore/ids"

// Sequence matches documents where every argument iterator agrees on the
// current document (subject to an optional cut set excluding any match
// with a cut element between the first and last argument hit) and whose
// positions occur in strictly ascending, argument order within a window
// of size Range (0 meaning unbounded). This is the operator the query
// evaluator compiles an ordered phrase/near expression to.
type Sequence struct {
	cut   Iterator // optional; nil means no cut set
	args  []Iterator
	rng   int
	docno ids.Index
}

func NewSequence(cut Iterator, args []Iterator, rng int) *Sequence {
	return &Sequence{cut: cut, args: args, rng: rng}
}

func (s *Sequence) SkipDoc(docno ids.Index) ids.Index {
	candidate := docno
	for {
		changed := false
		for _, a := range s.args {
			d := a.SkipDoc(candidate)
			if d == NoMatch {
				s.docno = NoMatch
				return NoMatch
			}
			if d > candidate {
				candidate = d
				changed = true
			}
		}
		if !changed {
			s.docno = candidate
			return candidate
		}
	}
}

func (s *Sequence) SkipDocCandidate(docno ids.Index) ids.Index { return s.SkipDoc(docno) }

func (s *Sequence) SkipPos(pos ids.PositionType) ids.PositionType {
	if len(s.args) == 0 {
		return NoMatch
	}
	p := s.args[0].SkipPos(pos)
	for p != NoMatch {
		cur := p
		ok := true
		for _, a := range s.args[1:] {
			next := a.SkipPos(cur + 1)
			if next == NoMatch || next <= cur {
				ok = false
				break
			}
			cur = next
		}
		if ok && (s.rng == 0 || int(cur-p) <= s.rng) && !s.cutWithin(p, cur) {
			return p
		}
		p = s.args[0].SkipPos(p + 1)
	}
	return NoMatch
}

func (s *Sequence) cutWithin(from, to ids.PositionType) bool {
	if s.cut == nil || s.cut.Docno() != s.docno {
		return false
	}
	cp := s.cut.SkipPos(from)
	return cp != NoMatch && cp <= to
}

func (s *Sequence) Docno() ids.Index        { return s.docno }
func (s *Sequence) Posno() ids.PositionType { return s.args[0].Posno() }
func (s *Sequence) Length() int             { return len(s.args) }
func (s *Sequence) Frequency() int          { return s.args[0].Frequency() }
func (s *Sequence) DocumentFrequency() ids.GlobalCounter { return minDf(s.args) }
func (s *Sequence) FeatureID() string                    { return joinFeatureID(s.args, s.rng, 'S') }

// Within matches documents where every argument agrees (subject to cut,
// as in Sequence) with positions in any order, all within a window of
// size |Range|: Strict rejects windows containing two arguments at the
// same position. Unlike Sequence, a Range of 0 is not unbounded — it
// requires every argument at the same position — since only Sequence
// documents 0 as "unbounded". A negative Range reports the window's
// last position instead of its first, per the contract table.
type Within struct {
	cut    Iterator
	args   []Iterator
	rng    int
	strict bool
	docno  ids.Index
}

func NewWithin(cut Iterator, args []Iterator, rng int, strict bool) *Within {
	return &Within{cut: cut, args: args, rng: rng, strict: strict}
}

// NewInRange is Within with duplicate positions permitted, per the
// "InRange is Within but not strict" rule in the join table.
func NewInRange(cut Iterator, args []Iterator, rng int) *Within {
	return &Within{cut: cut, args: args, rng: rng, strict: false}
}

func (w *Within) SkipDoc(docno ids.Index) ids.Index {
	candidate := docno
	for {
		changed := false
		for _, a := range w.args {
			d := a.SkipDoc(candidate)
			if d == NoMatch {
				w.docno = NoMatch
				return NoMatch
			}
			if d > candidate {
				candidate = d
				changed = true
			}
		}
		if !changed {
			w.docno = candidate
			return candidate
		}
	}
}

func (w *Within) SkipDocCandidate(docno ids.Index) ids.Index { return w.SkipDoc(docno) }

func (w *Within) SkipPos(pos ids.PositionType) ids.PositionType {
	win := w.rng
	if win < 0 {
		win = -win
	}
	p := pos
	positions := make([]ids.PositionType, len(w.args))
	for {
		var lo, hi ids.PositionType
		for i, a := range w.args {
			ap := a.SkipPos(p)
			if ap == NoMatch {
				return NoMatch
			}
			positions[i] = ap
			if lo == 0 || ap < lo {
				lo = ap
			}
			if ap > hi {
				hi = ap
			}
		}
		fits := int(hi-lo) <= win
		if fits && (!w.strict || !hasDuplicate(positions)) && !w.cutWithin(lo, hi) {
			if w.rng < 0 {
				return hi
			}
			return lo
		}
		p = lo + 1
	}
}

func (w *Within) cutWithin(from, to ids.PositionType) bool {
	if w.cut == nil || w.cut.Docno() != w.docno {
		return false
	}
	cp := w.cut.SkipPos(from)
	return cp != NoMatch && cp <= to
}

func hasDuplicate(positions []ids.PositionType) bool {
	seen := make(map[ids.PositionType]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
	}
	return false
}

func (w *Within) Docno() ids.Index        { return w.docno }
func (w *Within) Posno() ids.PositionType { return w.args[0].Posno() }
func (w *Within) Length() int             { return len(w.args) }
func (w *Within) Frequency() int          { return w.args[0].Frequency() }
func (w *Within) DocumentFrequency() ids.GlobalCounter { return minDf(w.args) }
func (w *Within) FeatureID() string {
	op := byte('W')
	if !w.strict {
		op = 'R'
	}
	return joinFeatureID(w.args, w.rng, op)
}
