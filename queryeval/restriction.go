// Package queryeval compiles a query program (selection/restriction
// feature sets, weighting functions, summarizers) against a
// storage.Storage and a postingiter tree into ranked results.
package queryeval

import (
	"github.com/strusgo/indexcore/blockformat"
	"github.com/strusgo/indexcore/ids"
	"github.com/strusgo/indexcore/storage"
)

// CompareOp is one of the five typed comparison operators a restriction
// clause uses.
type CompareOp int

const (
	OpLess CompareOp = iota
	OpLessEqual
	OpEqual
	OpGreater
	OpGreaterEqual
)

// epsilonFloat32 and epsilonFloat16 are the type-specific tolerances an
// equality/inequality comparison against a float metadata column applies,
// since exact float equality is rarely what a restriction author means.
// float16 carries far fewer significant bits than float32, so its
// epsilon is proportionally coarser.
const (
	epsilonFloat32 = 1e-6
	epsilonFloat16 = 1e-3
)

// Clause is one (column, op, constant) restriction triple.
type Clause struct {
	Column string
	Op     CompareOp
	Value  float64
}

// Group is a disjunction of clauses: it matches a document if at least
// one of its Clauses does.
type Group struct {
	Clauses []Clause
}

// Restriction is a disjunctive-normal-form metadata filter: a document
// matches iff every Group matches, i.e. Groups are ANDed together and,
// within a Group, Clauses are ORed.
type Restriction struct {
	Groups []Group
}

// Matches evaluates the restriction against docno's metadata columns in
// s. An empty Restriction (no groups) matches everything.
func (r Restriction) Matches(s *storage.Storage, docno ids.Index) (bool, error) {
	for _, g := range r.Groups {
		ok, err := g.matches(s, docno)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (g Group) matches(s *storage.Storage, docno ids.Index) (bool, error) {
	if len(g.Clauses) == 0 {
		return true, nil
	}
	for _, c := range g.Clauses {
		ok, err := c.matches(s, docno)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (c Clause) matches(s *storage.Storage, docno ids.Index) (bool, error) {
	val, ok, err := s.MetaDataValue(docno, c.Column)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	desc := s.MetaDataDescription()
	eps := 0.0
	if ci := desc.IndexOf(c.Column); ci >= 0 {
		eps = epsilonFor(desc.Columns[ci].Type)
	}
	v := float64(val)
	switch c.Op {
	case OpLess:
		return v < c.Value-eps, nil
	case OpLessEqual:
		return v <= c.Value+eps, nil
	case OpEqual:
		d := v - c.Value
		if d < 0 {
			d = -d
		}
		return d <= eps, nil
	case OpGreater:
		return v > c.Value+eps, nil
	case OpGreaterEqual:
		return v >= c.Value-eps, nil
	default:
		return false, nil
	}
}

func epsilonFor(t blockformat.CellType) float64 {
	switch t {
	case blockformat.CellFloat32:
		return epsilonFloat32
	case blockformat.CellFloat16:
		return epsilonFloat16
	default:
		return 0
	}
}
