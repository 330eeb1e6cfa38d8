package queryeval

import (
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/storage"
)

// SummaryElement is one named piece of a summarizer's output for a
// ranked document: value and weight carry the summarizer-specific
// payload, index disambiguates repeated occurrences of the same name.
type SummaryElement struct {
	Name   string
	Value  string
	Weight float64
	Index  int
}

// Variables names the match positions a summarizer may read back from a
// matched expression — e.g. matchvariables, accumulatevariable — as
// bound by the query program's variable-attachment statements.
type Variables map[string]postingiter.Iterator

// Summarizer collects features attached via AddSummarizationFeature and
// emits named attributes for a ranked document via GetSummary.
type Summarizer interface {
	AddSummarizationFeature(name string, iter postingiter.Iterator, variables Variables, weight float64) error
	GetSummary(s *storage.Storage, docno ids.Index) ([]SummaryElement, error)
}

type summaryFeature struct {
	name      string
	iter      postingiter.Iterator
	variables Variables
	weight    float64
}

// AttributeSummarizer emits one document attribute verbatim, ignoring
// its feature arguments — the simplest summarizer a query program can
// declare, e.g. `SUMMARIZE title = attribute(name=title)`.
type AttributeSummarizer struct {
	Attribute string
	features  []summaryFeature
}

func (sm *AttributeSummarizer) AddSummarizationFeature(name string, iter postingiter.Iterator, variables Variables, weight float64) error {
	sm.features = append(sm.features, summaryFeature{name: name, iter: iter, variables: variables, weight: weight})
	return nil
}

func (sm *AttributeSummarizer) GetSummary(s *storage.Storage, docno ids.Index) ([]SummaryElement, error) {
	v, ok, err := s.AttributeValue(docno, sm.Attribute)
	if err != nil || !ok {
		return nil, err
	}
	return []SummaryElement{{Name: sm.Attribute, Value: v, Weight: 1, Index: 0}}, nil
}

// MatchPosSummarizer emits one element per bound variable of each added
// feature whose iterator has a position in the document, with the
// variable name as Value and the feature's weight as Weight. The matched
// positions themselves are not reported.
type MatchPosSummarizer struct {
	Name     string
	features []summaryFeature
}

func (sm *MatchPosSummarizer) AddSummarizationFeature(name string, iter postingiter.Iterator, variables Variables, weight float64) error {
	sm.features = append(sm.features, summaryFeature{name: name, iter: iter, variables: variables, weight: weight})
	return nil
}

func (sm *MatchPosSummarizer) GetSummary(_ *storage.Storage, docno ids.Index) ([]SummaryElement, error) {
	var out []SummaryElement
	idx := 0
	for _, f := range sm.features {
		if f.iter.Docno() != docno && f.iter.SkipDocCandidate(docno) != docno {
			continue
		}
		for varName, varIter := range f.variables {
			if varIter.Docno() != docno && varIter.SkipDocCandidate(docno) != docno {
				continue
			}
			pos := varIter.SkipPos(0)
			if pos == postingiter.NoMatch {
				continue
			}
			out = append(out, SummaryElement{
				Name:   sm.Name,
				Value:  varName,
				Weight: f.weight,
				Index:  idx,
			})
			idx++
		}
	}
	return out, nil
}
