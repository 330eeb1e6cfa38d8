package postingiter

import (
	"github.com/strusgo/indexcore/storage"
)

// TermFromStorage builds a Term iterator (or a Null, if the type or
// value was never committed) for (typeName, value) against s — the
// construction path the query evaluator's compiler uses for every query
// feature leaf.
func TermFromStorage(s *storage.Storage, typeName, value string) (Iterator, error) {
	typeno, err := s.TypeNo(typeName)
	if err != nil {
		return nil, err
	}
	termno, err := s.TermNo(value)
	if err != nil {
		return nil, err
	}
	if typeno == 0 || termno == 0 {
		return Null{}, nil
	}
	records, err := s.LoadPosinfoRecords(typeno, termno)
	if err != nil {
		return nil, err
	}
	df, err := s.DocumentFrequency(typeno, termno)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return Null{}, nil
	}
	return NewTerm(typeno, termno, records, df), nil
}
