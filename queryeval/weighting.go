package queryeval

import (
	"math"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/storage"
)

// Weighting scores one candidate document for one ranking term of a
// query program. BM25 clamps its sum at zero; the other implementations
// return their scaled values unclamped, so a negative parameter or
// metadata value gives a negative weight.
type Weighting interface {
	Weight(s *storage.Storage, docno ids.Index) (float64, error)
}

// Constant always contributes Value, independent of the document.
type Constant struct{ Value float64 }

func (c Constant) Weight(*storage.Storage, ids.Index) (float64, error) { return c.Value, nil }

// TermFrequency weights a document by how often Iter matched within it,
// scaled by Value.
type TermFrequency struct {
	Iter  postingiter.Iterator
	Value float64
}

func (w TermFrequency) Weight(_ *storage.Storage, docno ids.Index) (float64, error) {
	if w.Iter.Docno() != docno {
		if w.Iter.SkipDocCandidate(docno) != docno {
			return 0, nil
		}
	}
	return float64(w.Iter.Frequency()) * w.Value, nil
}

// Metadata weights a document by one metadata column's value, scaled by
// Value.
type Metadata struct {
	Column string
	Value  float64
}

func (w Metadata) Weight(s *storage.Storage, docno ids.Index) (float64, error) {
	v, ok, err := s.MetaDataValue(docno, w.Column)
	if err != nil || !ok {
		return 0, err
	}
	return float64(v) * w.Value, nil
}

// Formula sums a fixed set of sub-weightings, each already scaled by its
// own coefficient, expressing the query program's `EVAL Formula(...)`
// combinator.
type Formula struct {
	Terms []Weighting
}

func (w Formula) Weight(s *storage.Storage, docno ids.Index) (float64, error) {
	var sum float64
	for _, t := range w.Terms {
		v, err := t.Weight(s, docno)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

// BM25 implements the classic Okapi BM25 scoring function over a set of
// feature iterators, per the contract's idf = log((N-df+0.5)/(df+0.5))
// and term-frequency saturation.
type BM25 struct {
	K1             float64
	B              float64
	AvgDocLen      float64
	DocLenMetadata string
	Features       []postingiter.Iterator
}

func (w BM25) Weight(s *storage.Storage, docno ids.Index) (float64, error) {
	n, err := s.NofDocs()
	if err != nil {
		return 0, err
	}
	doclen := w.AvgDocLen
	if w.DocLenMetadata != "" {
		if v, ok, err := s.MetaDataValue(docno, w.DocLenMetadata); err != nil {
			return 0, err
		} else if ok {
			doclen = float64(v)
		}
	}
	var sum float64
	for _, f := range w.Features {
		if f.Docno() != docno && f.SkipDocCandidate(docno) != docno {
			continue
		}
		tf := float64(f.Frequency())
		if tf <= 0 {
			continue
		}
		df := float64(f.DocumentFrequency())
		idf := bm25Idf(float64(n), df)
		norm := w.K1 * (1 - w.B + w.B*doclen/w.AvgDocLen)
		sum += idf * (tf * (w.K1 + 1)) / (tf + norm)
	}
	if sum < 0 {
		return 0, nil
	}
	return sum, nil
}

func bm25Idf(n, df float64) float64 {
	v := math.Log((n - df + 0.5) / (df + 0.5))
	if v < 0 {
		return 0
	}
	return v
}

// BM25pff is BM25 plus a proximity bonus: every window of WindowSize
// positions containing at least Cardinality distinct feature hits whose
// document frequency is at most MaxDfRatio*N contributes weight inverse
// to the window's span, and a title bonus scaled by TitleInc applies
// when the match falls within the first title_size/title_maxpos
// positions.
type BM25pff struct {
	BM25
	WindowSize  int
	Cardinality int
	MaxDfRatio  float64
	TitleInc    float64
}

func (w BM25pff) Weight(s *storage.Storage, docno ids.Index) (float64, error) {
	base, err := w.BM25.Weight(s, docno)
	if err != nil {
		return 0, err
	}
	n, err := s.NofDocs()
	if err != nil {
		return 0, err
	}
	prox, err := w.proximityBonus(s, docno, float64(n))
	if err != nil {
		return 0, err
	}
	title, err := w.titleBonus(s, docno)
	if err != nil {
		return 0, err
	}
	return base + prox + title, nil
}

func (w BM25pff) proximityBonus(s *storage.Storage, docno ids.Index, n float64) (float64, error) {
	eligible := make([]postingiter.Iterator, 0, len(w.Features))
	for _, f := range w.Features {
		if f.Docno() != docno && f.SkipDocCandidate(docno) != docno {
			continue
		}
		if float64(f.DocumentFrequency()) <= w.MaxDfRatio*n {
			eligible = append(eligible, f)
		}
	}
	if len(eligible) < w.Cardinality {
		return 0, nil
	}
	var bonus float64
	pos := ids.PositionType(0)
	for {
		lo := ids.PositionType(0)
		hi := ids.PositionType(0)
		hitCount := 0
		for _, f := range eligible {
			p := f.SkipPos(pos)
			if p == postingiter.NoMatch {
				continue
			}
			hitCount++
			if lo == 0 || p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
		}
		if hitCount < w.Cardinality {
			break
		}
		span := int(hi - lo)
		if span == 0 {
			span = 1
		}
		if w.WindowSize == 0 || span <= w.WindowSize {
			bonus += 1.0 / float64(span)
		}
		pos = lo + 1
	}
	return bonus, nil
}

func (w BM25pff) titleBonus(s *storage.Storage, docno ids.Index) (float64, error) {
	if w.TitleInc == 0 {
		return 0, nil
	}
	maxPos, ok, err := s.MetaDataValue(docno, "title_maxpos")
	if err != nil || !ok {
		return 0, err
	}
	size, ok, err := s.MetaDataValue(docno, "title_size")
	if err != nil || !ok || size <= 0 {
		return 0, err
	}
	for _, f := range w.Features {
		if f.Docno() != docno && f.SkipDocCandidate(docno) != docno {
			continue
		}
		if p := f.SkipPos(0); p != postingiter.NoMatch && float64(p) <= float64(maxPos) {
			return w.TitleInc * (1 - float64(p)/float64(size)), nil
		}
	}
	return 0, nil
}
