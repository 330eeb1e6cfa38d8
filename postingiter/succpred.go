package postingiter

import "github.com/strusgo/indexcore/ids"

// Succ reports the position immediately after its inner iterator's
// match — skipPos(p) returns inner.SkipPos(p)+1 when the inner hit
// exists, used to express "anywhere after X" in a Sequence/Within
// window.
type Succ struct{ inner Iterator }

func NewSucc(inner Iterator) *Succ { return &Succ{inner: inner} }

func (s *Succ) SkipDoc(docno ids.Index) ids.Index          { return s.inner.SkipDoc(docno) }
func (s *Succ) SkipDocCandidate(docno ids.Index) ids.Index { return s.inner.SkipDocCandidate(docno) }
func (s *Succ) SkipPos(pos ids.PositionType) ids.PositionType {
	p := s.inner.SkipPos(pos)
	if p == NoMatch {
		return NoMatch
	}
	return p + 1
}
func (s *Succ) Docno() ids.Index        { return s.inner.Docno() }
func (s *Succ) Posno() ids.PositionType { return s.inner.Posno() + 1 }
func (s *Succ) Length() int             { return s.inner.Length() }
func (s *Succ) Frequency() int          { return s.inner.Frequency() }
func (s *Succ) DocumentFrequency() ids.GlobalCounter { return s.inner.DocumentFrequency() }
func (s *Succ) FeatureID() string                    { return joinFeatureID([]Iterator{s.inner}, 0, '>') }

// Pred reports the position immediately before its inner iterator's next
// match — skipPos(p) returns inner.SkipPos(p+1)-1 when that hit exists.
type Pred struct{ inner Iterator }

func NewPred(inner Iterator) *Pred { return &Pred{inner: inner} }

func (p *Pred) SkipDoc(docno ids.Index) ids.Index          { return p.inner.SkipDoc(docno) }
func (p *Pred) SkipDocCandidate(docno ids.Index) ids.Index { return p.inner.SkipDocCandidate(docno) }
func (p *Pred) SkipPos(pos ids.PositionType) ids.PositionType {
	hit := p.inner.SkipPos(pos + 1)
	if hit == NoMatch {
		return NoMatch
	}
	return hit - 1
}
func (p *Pred) Docno() ids.Index        { return p.inner.Docno() }
func (p *Pred) Posno() ids.PositionType { return p.inner.Posno() - 1 }
func (p *Pred) Length() int             { return p.inner.Length() }
func (p *Pred) Frequency() int          { return p.inner.Frequency() }
func (p *Pred) DocumentFrequency() ids.GlobalCounter { return p.inner.DocumentFrequency() }
func (p *Pred) FeatureID() string                    { return joinFeatureID([]Iterator{p.inner}, 0, '<') }
