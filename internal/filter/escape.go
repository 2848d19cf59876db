package filter

import (
	"strings"
)

const hexDigits = "0123456789abcdef"

// EscapeValue escapes an assertion value for inclusion in a filter string.
// The characters '*', '(', ')', '\' and NUL are written as \XX.
func EscapeValue(value []byte) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, c := range value {
		switch c {
		case '*', '(', ')', '\\', 0:
			b.WriteByte('\\')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape decodes \XX sequences in a filter assertion value.
func Unescape(s string) ([]byte, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return []byte(s), nil
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		if i+2 >= len(s) {
			return nil, ErrInvalidEscape
		}
		hi, ok1 := fromHex(s[i+1])
		lo, ok2 := fromHex(s[i+2])
		if !ok1 || !ok2 {
			return nil, ErrInvalidEscape
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// String renders the filter in RFC 4515 form with values escaped.
func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	if f == nil {
		return
	}
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd, FilterOr:
		if f.Type == FilterAnd {
			b.WriteByte('&')
		} else {
			b.WriteByte('|')
		}
		for _, c := range f.Children {
			c.write(b)
		}
	case FilterNot:
		b.WriteByte('!')
		f.Child.write(b)
	case FilterEquality:
		b.WriteString(f.Attribute + "=" + EscapeValue(f.Value))
	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute + ">=" + EscapeValue(f.Value))
	case FilterLessOrEqual:
		b.WriteString(f.Attribute + "<=" + EscapeValue(f.Value))
	case FilterApproxMatch:
		b.WriteString(f.Attribute + "~=" + EscapeValue(f.Value))
	case FilterPresent:
		b.WriteString(f.Attribute + "=*")
	case FilterSubstring:
		b.WriteString(f.Attribute + "=")
		if sf := f.Substring; sf != nil {
			b.WriteString(EscapeValue(sf.Initial))
			b.WriteByte('*')
			for _, a := range sf.Any {
				b.WriteString(EscapeValue(a))
				b.WriteByte('*')
			}
			b.WriteString(EscapeValue(sf.Final))
		}
	case FilterExtensibleMatch:
		b.WriteString(f.Attribute)
		if f.DNAttributes {
			b.WriteString(":dn")
		}
		if f.MatchingRule != "" {
			b.WriteString(":" + f.MatchingRule)
		}
		b.WriteString(":=" + EscapeValue(f.Value))
	}
	b.WriteByte(')')
}
