package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Parser errors
var (
	ErrEmptyFilter      = errors.New("filter: empty filter")
	ErrInvalidFilter    = errors.New("filter: invalid filter syntax")
	ErrUnbalancedParens = errors.New("filter: unbalanced parentheses")
	ErrMissingAttribute = errors.New("filter: missing attribute name")
	ErrInvalidEscape    = errors.New("filter: invalid escape sequence")
)

// SyntaxError reports where in the filter string parsing failed.
type SyntaxError struct {
	Offset int
	Filter string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at offset %d in %q", e.Err, e.Offset, e.Filter)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Parse parses an RFC 4515 filter string into a Filter structure:
//   - (attr=value)       - equality
//   - (attr=*)           - presence
//   - (attr=*val*)       - substring
//   - (attr>=value)      - greater or equal
//   - (attr<=value)      - less or equal
//   - (attr~=value)      - approximate match
//   - (attr:dn:rule:=v)  - extensible match
//   - (&(f1)(f2)...)     - AND
//   - (|(f1)(f2)...)     - OR
//   - (!(filter))        - NOT
//
// Values may contain \XX hex escapes. A bare item without parentheses is
// accepted and wrapped.
func Parse(filterStr string) (*Filter, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil, ErrEmptyFilter
	}
	if filterStr[0] != '(' {
		filterStr = "(" + filterStr + ")"
	}

	p := &parser{s: filterStr}
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, p.fail(ErrInvalidFilter)
	}
	return f, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) fail(err error) error {
	return &SyntaxError{Offset: p.pos, Filter: p.s, Err: err}
}

func (p *parser) filter() (*Filter, error) {
	if p.pos >= len(p.s) {
		return nil, p.fail(ErrUnbalancedParens)
	}
	if p.s[p.pos] != '(' {
		return nil, p.fail(ErrInvalidFilter)
	}
	p.pos++
	if p.pos >= len(p.s) {
		return nil, p.fail(ErrUnbalancedParens)
	}

	var (
		f   *Filter
		err error
	)
	switch p.s[p.pos] {
	case '&':
		p.pos++
		var children []*Filter
		if children, err = p.list(); err == nil {
			f = NewAndFilter(children...)
		}
	case '|':
		p.pos++
		var children []*Filter
		if children, err = p.list(); err == nil {
			f = NewOrFilter(children...)
		}
	case '!':
		p.pos++
		var child *Filter
		if child, err = p.filter(); err == nil {
			f = NewNotFilter(child)
		}
	case ')':
		return nil, p.fail(ErrEmptyFilter)
	default:
		f, err = p.item()
	}
	if err != nil {
		return nil, err
	}

	if p.pos >= len(p.s) || p.s[p.pos] != ')' {
		return nil, p.fail(ErrUnbalancedParens)
	}
	p.pos++
	return f, nil
}

func (p *parser) list() ([]*Filter, error) {
	var filters []*Filter
	for p.pos < len(p.s) && p.s[p.pos] == '(' {
		f, err := p.filter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(filters) == 0 {
		return nil, p.fail(ErrInvalidFilter)
	}
	return filters, nil
}

// item parses the text up to the closing parenthesis of a simple item.
// Parentheses inside values must be escaped, so the first ')' ends the item.
func (p *parser) item() (*Filter, error) {
	start := p.pos
	end := strings.IndexAny(p.s[start:], "()")
	if end < 0 {
		return nil, p.fail(ErrUnbalancedParens)
	}
	if p.s[start+end] == '(' {
		p.pos = start + end
		return nil, p.fail(ErrInvalidFilter)
	}
	text := p.s[start : start+end]

	f, err := parseItem(text)
	if err != nil {
		return nil, p.fail(err)
	}
	p.pos = start + end
	return f, nil
}

func parseItem(text string) (*Filter, error) {
	eq := strings.IndexByte(text, '=')
	if eq < 0 {
		return nil, ErrInvalidFilter
	}
	if eq == 0 {
		return nil, ErrMissingAttribute
	}

	raw := text[eq+1:]
	op := text[eq-1]
	switch op {
	case '>', '<', '~':
		attr := strings.TrimSpace(text[:eq-1])
		if attr == "" {
			return nil, ErrMissingAttribute
		}
		value, err := Unescape(raw)
		if err != nil {
			return nil, err
		}
		switch op {
		case '>':
			return NewGreaterOrEqualFilter(attr, value), nil
		case '<':
			return NewLessOrEqualFilter(attr, value), nil
		default:
			return NewApproxMatchFilter(attr, value), nil
		}
	case ':':
		return parseExtensible(text[:eq-1], raw)
	}

	attr := strings.TrimSpace(text[:eq])
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	if raw == "*" {
		return NewPresentFilter(attr), nil
	}
	if strings.Contains(raw, "*") {
		return parseSubstring(attr, raw)
	}
	value, err := Unescape(raw)
	if err != nil {
		return nil, err
	}
	return NewEqualityFilter(attr, value), nil
}

// parseSubstring splits on unescaped '*'. An escaped star is \2a and never
// appears literally, so a plain split is exact.
func parseSubstring(attr, raw string) (*Filter, error) {
	parts := strings.Split(raw, "*")
	sf := &SubstringFilter{Attribute: attr}

	for i, part := range parts {
		if part == "" {
			continue
		}
		value, err := Unescape(part)
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			sf.Initial = value
		case len(parts) - 1:
			sf.Final = value
		default:
			sf.Any = append(sf.Any, value)
		}
	}
	return NewSubstringFilter(sf), nil
}

// parseExtensible handles "attr[:dn][:rule]" and "[:dn]:rule" descriptions.
func parseExtensible(desc, raw string) (*Filter, error) {
	parts := strings.Split(desc, ":")
	attr := strings.TrimSpace(parts[0])
	var rule string
	var dn bool
	for _, part := range parts[1:] {
		switch {
		case strings.EqualFold(part, "dn") && !dn && rule == "":
			dn = true
		case part != "" && rule == "":
			rule = part
		default:
			return nil, ErrInvalidFilter
		}
	}
	if attr == "" && rule == "" {
		return nil, ErrMissingAttribute
	}

	value, err := Unescape(raw)
	if err != nil {
		return nil, err
	}
	return NewExtensibleMatchFilter(attr, rule, value, dn), nil
}
