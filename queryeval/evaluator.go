package queryeval

import (
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/storage"
)

// RankedResult is one final ranked document, weight and all attributes
// its summarizers produced.
type RankedResult struct {
	Result
	Summary []SummaryElement
}

// QueryProgram is a compiled query: selection iterators that seed
// candidates, a restriction DNF, the ranking terms an accumulator sums
// per candidate, and the summarizers run over the final ranked window.
// A program's textual source (the TERM/SELECT/RESTRICT/EVAL/SUMMARIZE
// grammar) is compiled into this shape by the program subpackage; this
// type is the shape every compiled representation converges on.
type QueryProgram struct {
	Selection           []postingiter.Iterator
	FeatureRestrictions []postingiter.Iterator
	Restriction         Restriction
	Ranking             []RankedTerm
	Summarizers         []Summarizer
	Username            string
	MinRank             int
	MaxNofRanks         int
}

// Evaluate runs the four query-evaluation steps against s: it assumes
// Selection/Restriction/Ranking are already built against s's iterator
// trees, builds the bounded accumulator, and runs every summarizer
// against each surviving ranked document.
func (p *QueryProgram) Evaluate(s *storage.Storage) ([]RankedResult, error) {
	acc := NewAccumulator(s, p.Selection, p.Restriction, p.Username, p.Ranking, p.MinRank, p.MaxNofRanks).
		WithFeatureRestrictions(p.FeatureRestrictions)
	ranked, err := acc.Run()
	if err != nil {
		return nil, err
	}

	out := make([]RankedResult, len(ranked))
	for i, r := range ranked {
		var summary []SummaryElement
		for _, sm := range p.Summarizers {
			elems, err := sm.GetSummary(s, r.Docno)
			if err != nil {
				return nil, err
			}
			summary = append(summary, elems...)
		}
		out[i] = RankedResult{Result: r, Summary: summary}
	}
	return out, nil
}
