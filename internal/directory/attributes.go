package directory

import (
	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of an attribute name. Attribute
// descriptions are case-insensitive (RFC 4512 Section 2.5) and every index
// keyed by attribute name uses this form.
func Fold(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 0x80 {
			return cases.Fold().String(name)
		}
		if 'A' <= c && c <= 'Z' {
			return cases.Fold().String(name)
		}
	}
	return name
}

// EqualFold reports whether two attribute names are the same attribute.
func EqualFold(a, b string) bool {
	return a == b || Fold(a) == Fold(b)
}

// Attribute is one attribute description and its values as received.
type Attribute struct {
	Name   string
	Values [][]byte
}

// Attributes is an ordered multimap from attribute name to raw values.
// Lookups are case-insensitive; the spelling of the first Add is kept for
// Names. The zero value is ready to use.
type Attributes struct {
	attrs []Attribute
	index map[string]int
}

// NewAttributes returns an empty attribute set.
func NewAttributes() *Attributes {
	return &Attributes{}
}

// Add appends values to name, creating the attribute when absent.
func (a *Attributes) Add(name string, values ...[]byte) {
	key := Fold(name)
	if i, ok := a.index[key]; ok {
		a.attrs[i].Values = append(a.attrs[i].Values, values...)
		return
	}
	if a.index == nil {
		a.index = make(map[string]int)
	}
	a.index[key] = len(a.attrs)
	a.attrs = append(a.attrs, Attribute{Name: name, Values: append([][]byte(nil), values...)})
}

// AddString appends string values to name.
func (a *Attributes) AddString(name string, values ...string) {
	raw := make([][]byte, len(values))
	for i, v := range values {
		raw[i] = []byte(v)
	}
	a.Add(name, raw...)
}

// Set replaces all values of name.
func (a *Attributes) Set(name string, values ...[]byte) {
	if i, ok := a.index[Fold(name)]; ok {
		a.attrs[i].Values = append([][]byte(nil), values...)
		return
	}
	a.Add(name, values...)
}

// Delete removes name and its values.
func (a *Attributes) Delete(name string) {
	key := Fold(name)
	i, ok := a.index[key]
	if !ok {
		return
	}
	a.attrs = append(a.attrs[:i], a.attrs[i+1:]...)
	delete(a.index, key)
	for k, j := range a.index {
		if j > i {
			a.index[k] = j - 1
		}
	}
}

// Get returns the values of name and whether the attribute is present.
// An attribute listed with no values is present.
func (a *Attributes) Get(name string) ([][]byte, bool) {
	if a == nil {
		return nil, false
	}
	i, ok := a.index[Fold(name)]
	if !ok {
		return nil, false
	}
	return a.attrs[i].Values, true
}

// Values returns the values of name, or nil when absent.
func (a *Attributes) Values(name string) [][]byte {
	v, _ := a.Get(name)
	return v
}

// Has reports whether name is present.
func (a *Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// First returns the first value of name as a string.
func (a *Attributes) First(name string) (string, bool) {
	v, ok := a.Get(name)
	if !ok || len(v) == 0 {
		return "", false
	}
	return string(v[0]), true
}

// Strings returns all values of name as strings.
func (a *Attributes) Strings(name string) []string {
	v := a.Values(name)
	if v == nil {
		return nil
	}
	out := make([]string, len(v))
	for i, b := range v {
		out[i] = string(b)
	}
	return out
}

// Names returns attribute names in insertion order.
func (a *Attributes) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, len(a.attrs))
	for i, attr := range a.attrs {
		names[i] = attr.Name
	}
	return names
}

// Len returns the number of distinct attributes.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.attrs)
}

// All returns a copy of the attribute list in insertion order.
func (a *Attributes) All() []Attribute {
	if a == nil {
		return nil
	}
	return append([]Attribute(nil), a.attrs...)
}

// Clone returns a deep copy.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes()
	if a == nil {
		return c
	}
	for _, attr := range a.attrs {
		values := make([][]byte, len(attr.Values))
		for i, v := range attr.Values {
			values[i] = append([]byte(nil), v...)
		}
		c.Add(attr.Name, values...)
	}
	return c
}
