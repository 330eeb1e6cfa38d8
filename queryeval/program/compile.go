package program

import (
	"strconv"
	"strings"

	"github.com/strusgo/indexcore/errs"
	"github.com/strusgo/indexcore/postingiter"
	"github.com/strusgo/indexcore/queryeval"
	"github.com/strusgo/indexcore/storage"
)

// Compile resolves prog's declared feature sets against s and builds a
// queryeval.QueryProgram, the composition cmd/indexcore's query command
// performs for a loaded program file.
func Compile(prog *Program, s *storage.Storage) (*queryeval.QueryProgram, error) {
	c := &compiler{s: s, sets: map[string][]postingiter.Iterator{}, formulas: map[string]FormulaStmt{}}
	for _, t := range prog.Terms {
		iter, err := postingiter.TermFromStorage(s, t.Type, t.Value)
		if err != nil {
			return nil, err
		}
		c.sets[t.Set] = append(c.sets[t.Set], iter)
	}
	for _, f := range prog.Formulas {
		c.formulas[strings.ToUpper(f.Name)] = f
	}

	qp := &queryeval.QueryProgram{MaxNofRanks: 20}

	for _, st := range prog.Selects {
		for _, name := range st.Sets {
			iter, err := c.setIterator(name)
			if err != nil {
				return nil, err
			}
			qp.Selection = append(qp.Selection, iter)
		}
	}
	for _, st := range prog.Restricts {
		for _, name := range st.Sets {
			iter, err := c.setIterator(name)
			if err != nil {
				return nil, err
			}
			qp.FeatureRestrictions = append(qp.FeatureRestrictions, iter)
		}
	}
	for _, st := range prog.Evals {
		term, err := c.compileEval(st)
		if err != nil {
			return nil, err
		}
		qp.Ranking = append(qp.Ranking, term)
	}
	for _, st := range prog.Summarizes {
		sm, err := c.compileSummarize(st)
		if err != nil {
			return nil, err
		}
		qp.Summarizers = append(qp.Summarizers, sm)
	}
	return qp, nil
}

type compiler struct {
	s        *storage.Storage
	sets     map[string][]postingiter.Iterator
	formulas map[string]FormulaStmt
}

func (c *compiler) components(name string) ([]postingiter.Iterator, error) {
	comps, ok := c.sets[name]
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "program: undeclared feature set %q", name)
	}
	return comps, nil
}

// setIterator collapses a named feature set's components into a single
// iterator: the set itself if it has one term, their union otherwise —
// the shape a selector or restriction feature set needs.
func (c *compiler) setIterator(name string) (postingiter.Iterator, error) {
	comps, err := c.components(name)
	if err != nil {
		return nil, err
	}
	if len(comps) == 1 {
		return comps[0], nil
	}
	return postingiter.NewUnion(comps), nil
}

func paramValue(params []Param, name string) (string, bool) {
	for _, p := range params {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

func paramFloat(params []Param, name string, def float64) (float64, error) {
	v, ok := paramValue(params, name)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errs.Newf(errs.InvalidArgument, "program: param %q is not numeric: %q", name, v)
	}
	return f, nil
}

func (c *compiler) compileEval(st EvalStmt) (queryeval.RankedTerm, error) {
	var features []postingiter.Iterator
	for _, name := range st.Sets {
		comps, err := c.components(name)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		features = append(features, comps...)
	}

	switch strings.ToUpper(st.Name) {
	case "CONSTANT":
		v, err := paramFloat(st.Params, "value", 1)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		return queryeval.RankedTerm{Weighting: queryeval.Constant{Value: v}}, nil

	case "TERMFREQUENCY":
		weight, err := paramFloat(st.Params, "weight", 1)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		var sub []queryeval.Weighting
		for _, f := range features {
			sub = append(sub, queryeval.TermFrequency{Iter: f, Value: weight})
		}
		return queryeval.RankedTerm{Weighting: queryeval.Formula{Terms: sub}}, nil

	case "METADATA":
		column, _ := paramValue(st.Params, "column")
		weight, err := paramFloat(st.Params, "weight", 1)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		return queryeval.RankedTerm{Weighting: queryeval.Metadata{Column: column, Value: weight}}, nil

	case "FORMULA":
		weight, err := paramFloat(st.Params, "weight", 1)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		var sub []queryeval.Weighting
		for _, f := range features {
			sub = append(sub, queryeval.TermFrequency{Iter: f, Value: weight})
		}
		return queryeval.RankedTerm{Weighting: queryeval.Formula{Terms: sub}}, nil

	case "BM25":
		bm, err := c.compileBM25(st, features)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		return queryeval.RankedTerm{Weighting: bm}, nil

	case "BM25PFF":
		bm, err := c.compileBM25(st, features)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		windowSize, err := paramFloat(st.Params, "windowsize", 20)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		cardinality, err := paramFloat(st.Params, "cardinality", 2)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		maxdf, err := paramFloat(st.Params, "maxdf", 0.5)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		titleinc, err := paramFloat(st.Params, "titleinc", 0)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		return queryeval.RankedTerm{Weighting: queryeval.BM25pff{
			BM25:        bm,
			WindowSize:  int(windowSize),
			Cardinality: int(cardinality),
			MaxDfRatio:  maxdf,
			TitleInc:    titleinc,
		}}, nil

	default:
		if fs, ok := c.formulas[strings.ToUpper(st.Name)]; ok {
			return c.compileFormulaRef(fs)
		}
		return queryeval.RankedTerm{}, errs.Newf(errs.InvalidArgument, "program: unknown weighting function %q", st.Name)
	}
}

// compileFormulaRef expands a FORMULA definition's weight*set addends
// into a Formula of per-set TermFrequency terms.
func (c *compiler) compileFormulaRef(fs FormulaStmt) (queryeval.RankedTerm, error) {
	var sub []queryeval.Weighting
	for _, t := range fs.Terms {
		comps, err := c.components(t.Set)
		if err != nil {
			return queryeval.RankedTerm{}, err
		}
		for _, f := range comps {
			sub = append(sub, queryeval.TermFrequency{Iter: f, Value: t.Weight})
		}
	}
	return queryeval.RankedTerm{Weighting: queryeval.Formula{Terms: sub}}, nil
}

func (c *compiler) compileBM25(st EvalStmt, features []postingiter.Iterator) (queryeval.BM25, error) {
	k1, err := paramFloat(st.Params, "k1", 1.2)
	if err != nil {
		return queryeval.BM25{}, err
	}
	b, err := paramFloat(st.Params, "b", 0.75)
	if err != nil {
		return queryeval.BM25{}, err
	}
	avgdoclen, err := paramFloat(st.Params, "avgdoclen", 1)
	if err != nil {
		return queryeval.BM25{}, err
	}
	doclenMetadata, _ := paramValue(st.Params, "doclen-metadata-name")
	return queryeval.BM25{K1: k1, B: b, AvgDocLen: avgdoclen, DocLenMetadata: doclenMetadata, Features: features}, nil
}

func (c *compiler) compileSummarize(st SummarizeStmt) (queryeval.Summarizer, error) {
	switch strings.ToUpper(st.Name) {
	case "ATTRIBUTE":
		attr, ok := paramValue(st.Params, "name")
		if !ok {
			attr = st.Attribute
		}
		return &queryeval.AttributeSummarizer{Attribute: attr}, nil

	case "MATCHPOS":
		sm := &queryeval.MatchPosSummarizer{Name: st.Attribute}
		for _, p := range st.Params {
			comps, ok := c.sets[p.Value]
			if !ok {
				continue
			}
			iter := comps[0]
			if len(comps) > 1 {
				iter = postingiter.NewUnion(comps)
			}
			vars := queryeval.Variables{p.Name: iter}
			if err := sm.AddSummarizationFeature(p.Name, iter, vars, 1); err != nil {
				return nil, err
			}
		}
		return sm, nil

	default:
		return nil, errs.Newf(errs.InvalidArgument, "program: unknown summarizer %q", st.Name)
	}
}
