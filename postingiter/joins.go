package postingiter

import "github.com/strusgo/indexcore/ids"

// minDf, maxDf implement the shared document-frequency estimation rules:
// these are upper-bound estimates carried from the arguments, never
// recomputed by walking the join itself.
func minDf(args []Iterator) ids.GlobalCounter {
	if len(args) == 0 {
		return 0
	}
	m := args[0].DocumentFrequency()
	for _, a := range args[1:] {
		if d := a.DocumentFrequency(); d < m {
			m = d
		}
	}
	return m
}

func maxDf(args []Iterator) ids.GlobalCounter {
	var m ids.GlobalCounter
	for _, a := range args {
		if d := a.DocumentFrequency(); d > m {
			m = d
		}
	}
	return m
}

// Intersect matches documents every argument matches, and positions
// every argument agrees on.
type Intersect struct {
	args  []Iterator
	docno ids.Index
}

func NewIntersect(args []Iterator) *Intersect { return &Intersect{args: args} }

func (x *Intersect) SkipDoc(docno ids.Index) ids.Index {
	candidate := docno
	for {
		changed := false
		for _, a := range x.args {
			d := a.SkipDoc(candidate)
			if d == NoMatch {
				x.docno = NoMatch
				return NoMatch
			}
			if d > candidate {
				candidate = d
				changed = true
			}
		}
		if !changed {
			x.docno = candidate
			return candidate
		}
	}
}

func (x *Intersect) SkipDocCandidate(docno ids.Index) ids.Index {
	candidate := docno
	for {
		changed := false
		for _, a := range x.args {
			d := a.SkipDocCandidate(candidate)
			if d == NoMatch {
				x.docno = NoMatch
				return NoMatch
			}
			if d > candidate {
				candidate = d
				changed = true
			}
		}
		if !changed {
			x.docno = candidate
			return candidate
		}
	}
}

func (x *Intersect) SkipPos(pos ids.PositionType) ids.PositionType {
	candidate := pos
	for {
		changed := false
		for _, a := range x.args {
			p := a.SkipPos(candidate)
			if p == NoMatch {
				return NoMatch
			}
			if p > candidate {
				candidate = p
				changed = true
			}
		}
		if !changed {
			return candidate
		}
	}
}

func (x *Intersect) Docno() ids.Index        { return x.docno }
func (x *Intersect) Posno() ids.PositionType {
	if len(x.args) == 0 {
		return NoMatch
	}
	return x.args[0].Posno()
}
func (x *Intersect) Length() int { return len(x.args) }
func (x *Intersect) Frequency() int {
	if len(x.args) == 0 {
		return 0
	}
	f := x.args[0].Frequency()
	for _, a := range x.args[1:] {
		if af := a.Frequency(); af < f {
			f = af
		}
	}
	return f
}
func (x *Intersect) DocumentFrequency() ids.GlobalCounter { return minDf(x.args) }
func (x *Intersect) FeatureID() string                    { return joinFeatureID(x.args, 0, 'I') }

// Contains is Intersect restricted to doc-level matching only: it has no
// positional match of its own, per the spec's join table.
type Contains struct{ Intersect }

func NewContains(args []Iterator) *Contains { return &Contains{Intersect{args: args}} }

func (c *Contains) SkipPos(ids.PositionType) ids.PositionType { return NoMatch }
func (c *Contains) FeatureID() string                          { return joinFeatureID(c.args, 0, 'C') }

// Union matches documents any argument matches; at a shared document,
// SkipPos is the minimum over the arguments currently positioned there.
type Union struct {
	args  []Iterator
	docno ids.Index
}

func NewUnion(args []Iterator) *Union { return &Union{args: args} }

func (x *Union) SkipDoc(docno ids.Index) ids.Index {
	var best ids.Index
	for _, a := range x.args {
		d := a.SkipDoc(docno)
		if d != NoMatch && (best == NoMatch || d < best) {
			best = d
		}
	}
	x.docno = best
	return best
}

func (x *Union) SkipDocCandidate(docno ids.Index) ids.Index {
	var best ids.Index
	for _, a := range x.args {
		d := a.SkipDocCandidate(docno)
		if d != NoMatch && (best == NoMatch || d < best) {
			best = d
		}
	}
	x.docno = best
	return best
}

func (x *Union) SkipPos(pos ids.PositionType) ids.PositionType {
	var best ids.PositionType
	for _, a := range x.args {
		if a.Docno() != x.docno {
			continue
		}
		p := a.SkipPos(pos)
		if p != NoMatch && (best == NoMatch || p < best) {
			best = p
		}
	}
	return best
}

func (x *Union) Docno() ids.Index { return x.docno }
func (x *Union) Posno() ids.PositionType {
	var best ids.PositionType
	for _, a := range x.args {
		if a.Docno() != x.docno {
			continue
		}
		if p := a.Posno(); p != NoMatch && (best == NoMatch || p < best) {
			best = p
		}
	}
	return best
}
func (x *Union) Length() int { return len(x.args) }
func (x *Union) Frequency() int {
	total := 0
	for _, a := range x.args {
		if a.Docno() == x.docno {
			total += a.Frequency()
		}
	}
	return total
}
func (x *Union) DocumentFrequency() ids.GlobalCounter { return maxDf(x.args) }
func (x *Union) FeatureID() string                    { return joinFeatureID(x.args, 0, 'U') }

// Difference matches pos's documents, excluding any position neg also
// matches at the same doc and position.
type Difference struct {
	pos, neg Iterator
	docno    ids.Index
}

func NewDifference(pos, neg Iterator) *Difference { return &Difference{pos: pos, neg: neg} }

func (x *Difference) SkipDoc(docno ids.Index) ids.Index {
	d := x.pos.SkipDoc(docno)
	x.docno = d
	return d
}

func (x *Difference) SkipDocCandidate(docno ids.Index) ids.Index {
	d := x.pos.SkipDocCandidate(docno)
	x.docno = d
	return d
}

func (x *Difference) SkipPos(pos ids.PositionType) ids.PositionType {
	if x.docno == NoMatch {
		return NoMatch
	}
	p := x.pos.SkipPos(pos)
	for p != NoMatch {
		if x.neg.SkipDoc(x.docno) == x.docno {
			if x.neg.SkipPos(p) == p {
				p = x.pos.SkipPos(p + 1)
				continue
			}
		}
		return p
	}
	return NoMatch
}

func (x *Difference) Docno() ids.Index        { return x.docno }
func (x *Difference) Posno() ids.PositionType { return x.pos.Posno() }
func (x *Difference) Length() int             { return x.pos.Length() }
func (x *Difference) Frequency() int          { return x.pos.Frequency() }
func (x *Difference) DocumentFrequency() ids.GlobalCounter { return x.pos.DocumentFrequency() }
func (x *Difference) FeatureID() string {
	return joinFeatureID([]Iterator{x.pos, x.neg}, 0, 'A')
}
