package queryeval

import (
	"container/heap"

	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/storage"
)

// RankedTerm is one ranking term of a query program's EVAL ... WITH
// statement: a weighting function, which holds the features it scores.
type RankedTerm struct {
	Weighting Weighting
}

// Result is one ranked document: its docno and accumulated weight.
type Result struct {
	Docno  ids.Index
	Weight float64
}

// resultHeap is a min-heap of Results ordered by ascending weight, so
// the lowest-scoring candidate sits at the root and is the first
// evicted once the heap grows past its bound.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Weight < h[j].Weight }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Accumulator ranks candidate documents produced by a set of selection
// iterators: every candidate passes the metadata restriction and ACL
// filter before its ranking terms are summed into a weight, and only
// the top minRank+maxNofRanks candidates are kept at any time.
type Accumulator struct {
	s                   *storage.Storage
	selectors           []postingiter.Iterator
	featureRestrictions []postingiter.Iterator
	restriction         Restriction
	username            string
	terms               []RankedTerm
	minRank             int
	maxNofRanks         int
}

// NewAccumulator builds an accumulator over selectors, applying
// restriction and an optional ACL username filter, ranking candidates
// with terms, and bounding the retained set to minRank+maxNofRanks.
func NewAccumulator(s *storage.Storage, selectors []postingiter.Iterator, restriction Restriction, username string, terms []RankedTerm, minRank, maxNofRanks int) *Accumulator {
	return &Accumulator{
		s:           s,
		selectors:   selectors,
		restriction: restriction,
		username:    username,
		terms:       terms,
		minRank:     minRank,
		maxNofRanks: maxNofRanks,
	}
}

// WithFeatureRestrictions attaches a query program's RESTRICT feature
// sets: a candidate must be a member of every one of these iterators
// (postingiter.NoMatch from SkipDocCandidate rejects it), distinct from
// the metadata-DNF Restriction compiled in step 2.
func (a *Accumulator) WithFeatureRestrictions(iters []postingiter.Iterator) *Accumulator {
	a.featureRestrictions = iters
	return a
}

// Run drives the selectors to exhaustion and returns the final ranked
// window [minRank, minRank+maxNofRanks) in descending weight order.
func (a *Accumulator) Run() ([]Result, error) {
	bound := a.minRank + a.maxNofRanks
	h := &resultHeap{}
	heap.Init(h)

	last := ids.Index(0)
	visited := make(map[ids.Index]struct{})
	for {
		docno, ok := a.nextCandidate(last, visited)
		if !ok {
			break
		}
		last = docno
		visited[docno] = struct{}{}

		pass, err := a.admits(docno)
		if err != nil {
			return nil, err
		}
		if !pass {
			continue
		}

		weight, err := a.weigh(docno)
		if err != nil {
			return nil, err
		}
		if weight < 0 {
			continue
		}

		if bound <= 0 {
			continue
		}
		heap.Push(h, Result{Docno: docno, Weight: weight})
		if h.Len() > bound {
			heap.Pop(h)
		}
	}

	ordered := make([]Result, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		ordered[i] = heap.Pop(h).(Result)
	}
	if a.minRank >= len(ordered) {
		return nil, nil
	}
	end := len(ordered)
	if end > bound {
		end = bound
	}
	return ordered[a.minRank:end], nil
}

func (a *Accumulator) nextCandidate(last ids.Index, visited map[ids.Index]struct{}) (ids.Index, bool) {
	best := ids.Index(0)
	for _, sel := range a.selectors {
		d := sel.SkipDocCandidate(last + 1)
		if d == postingiter.NoMatch {
			continue
		}
		if _, seen := visited[d]; seen {
			continue
		}
		if best == 0 || d < best {
			best = d
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

func (a *Accumulator) admits(docno ids.Index) (bool, error) {
	ok, err := a.restriction.Matches(a.s, docno)
	if err != nil || !ok {
		return false, err
	}
	for _, r := range a.featureRestrictions {
		if r.Docno() != docno && r.SkipDocCandidate(docno) != docno {
			return false, nil
		}
	}
	return a.s.CheckAccess(docno, a.username)
}

func (a *Accumulator) weigh(docno ids.Index) (float64, error) {
	var sum float64
	for _, t := range a.terms {
		v, err := t.Weighting.Weight(a.s, docno)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}
