package postingiter

import "github.com/strusgo/indexcore/ids"

// Null is the empty iterator, returned in place of a Term when a query
// names a type or term value that was never committed — matching
// nothing is a valid query result, not an error.
type Null struct{}

func (Null) SkipDoc(ids.Index) ids.Index            { return NoMatch }
func (Null) SkipDocCandidate(ids.Index) ids.Index   { return NoMatch }
func (Null) SkipPos(ids.PositionType) ids.PositionType { return NoMatch }
func (Null) Docno() ids.Index                       { return NoMatch }
func (Null) Posno() ids.PositionType                { return NoMatch }
func (Null) Length() int                            { return 0 }
func (Null) Frequency() int                         { return 0 }
func (Null) DocumentFrequency() ids.GlobalCounter    { return 0 }
func (Null) FeatureID() string                      { return "N" }
