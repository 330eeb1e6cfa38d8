package program

import (
	"strconv"
	"strings"
	"text/scanner"

	"github.com/strusgo/indexcore/errs"
)

// Parse tokenizes and parses src into a Program. Keywords are
// case-insensitive and Compile matches weighting-function, summarizer,
// formula and parameter names case-insensitively; feature set names are
// matched exactly as written. String literals are double-quoted, numbers
// accept decimal and floating forms, and `//`/`/* */` comments are
// skipped — the token shapes text/scanner.Scanner already gives.
func Parse(src string) (*Program, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(*scanner.Scanner, string) {} // surfaced via Scan()'s own token instead
	p.next()

	prog := &Program{}
	for p.tok != scanner.EOF {
		kw := strings.ToUpper(p.text)
		switch kw {
		case "TERM":
			stmt, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			prog.Terms = append(prog.Terms, stmt)
		case "SELECT":
			stmt, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			prog.Selects = append(prog.Selects, stmt)
		case "RESTRICT":
			stmt, err := p.parseRestrict()
			if err != nil {
				return nil, err
			}
			prog.Restricts = append(prog.Restricts, stmt)
		case "EVAL":
			stmt, err := p.parseEval()
			if err != nil {
				return nil, err
			}
			prog.Evals = append(prog.Evals, stmt)
		case "SUMMARIZE":
			stmt, err := p.parseSummarize()
			if err != nil {
				return nil, err
			}
			prog.Summarizes = append(prog.Summarizes, stmt)
		case "FORMULA":
			stmt, err := p.parseFormula()
			if err != nil {
				return nil, err
			}
			prog.Formulas = append(prog.Formulas, stmt)
		default:
			return nil, p.errorf("unexpected token %q, expected a statement keyword", p.text)
		}
	}
	return prog, nil
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errs.Newf(errs.InvalidArgument, "program: line %d: "+format, append([]interface{}{p.s.Line}, args...)...)
}

func (p *parser) expectText(want string) error {
	if !strings.EqualFold(p.text, want) {
		return p.errorf("expected %q, got %q", want, p.text)
	}
	p.next()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected identifier, got %q", p.text)
	}
	v := p.text
	p.next()
	return v, nil
}

// identList parses a comma-separated list of identifiers up to and
// consuming a terminating `;`.
func (p *parser) identList() ([]string, error) {
	var out []string
	for {
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
		if p.text == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectText(";"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseTerm() (TermStmt, error) {
	p.next() // consume TERM
	set, err := p.expectIdent()
	if err != nil {
		return TermStmt{}, err
	}
	value, err := p.valueLiteral()
	if err != nil {
		return TermStmt{}, err
	}
	if err := p.expectText(":"); err != nil {
		return TermStmt{}, err
	}
	typ, err := p.expectIdent()
	if err != nil {
		return TermStmt{}, err
	}
	if err := p.expectText(";"); err != nil {
		return TermStmt{}, err
	}
	return TermStmt{Set: set, Value: value, Type: typ}, nil
}

// valueLiteral accepts either a quoted string or a bare identifier/number
// as a term value ("value-literal-or-id" in the grammar).
func (p *parser) valueLiteral() (string, error) {
	if p.tok == scanner.String {
		v, err := strconv.Unquote(p.text)
		if err != nil {
			return "", p.errorf("malformed string literal %q", p.text)
		}
		p.next()
		return v, nil
	}
	if p.tok == scanner.Ident || p.tok == scanner.Int || p.tok == scanner.Float {
		v := p.text
		p.next()
		return v, nil
	}
	return "", p.errorf("expected a value literal, got %q", p.text)
}

func (p *parser) parseSelect() (SelectStmt, error) {
	p.next() // consume SELECT
	sets, err := p.identList()
	if err != nil {
		return SelectStmt{}, err
	}
	return SelectStmt{Sets: sets}, nil
}

func (p *parser) parseRestrict() (RestrictStmt, error) {
	p.next() // consume RESTRICT
	sets, err := p.identList()
	if err != nil {
		return RestrictStmt{}, err
	}
	return RestrictStmt{Sets: sets}, nil
}

func (p *parser) parseEval() (EvalStmt, error) {
	p.next() // consume EVAL
	name, err := p.expectIdent()
	if err != nil {
		return EvalStmt{}, err
	}
	params, err := p.paramList()
	if err != nil {
		return EvalStmt{}, err
	}
	if err := p.expectText("WITH"); err != nil {
		return EvalStmt{}, err
	}
	sets, err := p.identList()
	if err != nil {
		return EvalStmt{}, err
	}
	return EvalStmt{Name: name, Params: params, Sets: sets}, nil
}

func (p *parser) parseSummarize() (SummarizeStmt, error) {
	p.next() // consume SUMMARIZE
	attr, err := p.expectIdent()
	if err != nil {
		return SummarizeStmt{}, err
	}
	if err := p.expectText("="); err != nil {
		return SummarizeStmt{}, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return SummarizeStmt{}, err
	}
	params, err := p.paramList()
	if err != nil {
		return SummarizeStmt{}, err
	}
	if err := p.expectText(";"); err != nil {
		return SummarizeStmt{}, err
	}
	return SummarizeStmt{Attribute: attr, Name: name, Params: params}, nil
}

// parseFormula parses `FORMULA <name> ( <weight>*<set>, ... ) ;`, the
// named-arithmetic-combination grammar extension.
func (p *parser) parseFormula() (FormulaStmt, error) {
	p.next() // consume FORMULA
	name, err := p.expectIdent()
	if err != nil {
		return FormulaStmt{}, err
	}
	if err := p.expectText("("); err != nil {
		return FormulaStmt{}, err
	}
	var terms []FormulaTerm
	for {
		if p.tok != scanner.Int && p.tok != scanner.Float {
			return FormulaStmt{}, p.errorf("expected a numeric weight, got %q", p.text)
		}
		w, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			return FormulaStmt{}, p.errorf("malformed weight %q", p.text)
		}
		p.next()
		if err := p.expectText("*"); err != nil {
			return FormulaStmt{}, err
		}
		set, err := p.expectIdent()
		if err != nil {
			return FormulaStmt{}, err
		}
		terms = append(terms, FormulaTerm{Weight: w, Set: set})
		if p.text == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectText(")"); err != nil {
		return FormulaStmt{}, err
	}
	if err := p.expectText(";"); err != nil {
		return FormulaStmt{}, err
	}
	return FormulaStmt{Name: name, Terms: terms}, nil
}

// paramList parses `( name=value, ... )`, consuming the trailing `)`
// but not any statement terminator after it.
func (p *parser) paramList() ([]Param, error) {
	if err := p.expectText("("); err != nil {
		return nil, err
	}
	var out []Param
	if p.text == ")" {
		p.next()
		return out, nil
	}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectText("="); err != nil {
			return nil, err
		}
		value, err := p.valueLiteral()
		if err != nil {
			return nil, err
		}
		out = append(out, Param{Name: name, Value: value})
		if p.text == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectText(")"); err != nil {
		return nil, err
	}
	return out, nil
}
