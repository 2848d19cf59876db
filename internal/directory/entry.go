// Package directory holds the raw entry model shared by the query engine,
// the network client and the in-memory directory.
package directory

import (
	"bytes"

	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
)

// ObjectClassAttribute names the attribute carrying an entry's object classes.
const ObjectClassAttribute = "objectClass"

// AllUserAttributes requests every user attribute of an entry.
const AllUserAttributes = "*"

// DNKey is the Dictionary key under which the distinguished name is stored.
const DNKey = "distinguishedName"

// Entry is one directory entry: a distinguished name and its attributes.
type Entry struct {
	DN         string
	Attributes *Attributes
}

// NewEntry creates an entry with an empty attribute set.
func NewEntry(dn string) *Entry {
	return &Entry{DN: dn, Attributes: NewAttributes()}
}

// FromResultEntry converts a decoded SearchResultEntry.
func FromResultEntry(r *ldap.SearchResultEntry) *Entry {
	e := NewEntry(r.ObjectName)
	for _, attr := range r.Attributes {
		e.Attributes.Add(attr.Type, attr.Values...)
	}
	return e
}

// DistinguishedName returns the entry DN.
func (e *Entry) DistinguishedName() string {
	return e.DN
}

// Values returns the values of attribute, or nil when absent.
func (e *Entry) Values(attribute string) [][]byte {
	return e.Attributes.Values(attribute)
}

// ObjectClasses returns the objectClass values.
func (e *Entry) ObjectClasses() []string {
	return e.Attributes.Strings(ObjectClassAttribute)
}

// Select returns the SearchResultEntry a server would send for a request
// naming attrs. An empty list or "*" selects every attribute, "1.1" alone
// selects none and typesOnly drops the values.
func (e *Entry) Select(attrs []string, typesOnly bool) *ldap.SearchResultEntry {
	out := &ldap.SearchResultEntry{ObjectName: e.DN}

	all := len(attrs) == 0
	wanted := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		switch a {
		case AllUserAttributes:
			all = true
		case ldap.NoAttributes:
		default:
			wanted[Fold(a)] = true
		}
	}

	for _, attr := range e.Attributes.All() {
		if !all && !wanted[Fold(attr.Name)] {
			continue
		}
		pa := ldap.PartialAttribute{Type: attr.Name}
		if !typesOnly {
			pa.Values = cloneValues(attr.Values)
		}
		out.Attributes = append(out.Attributes, pa)
	}
	return out
}

func cloneValues(values [][]byte) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = bytes.Clone(v)
	}
	return out
}

// Listing is a raw result: the entry DN and the attributes as received.
type Listing struct {
	DN         string
	Attributes *Attributes
}

// Dictionary maps every attribute present on an entry to its values. The
// DN is stored under DNKey unless the entry carries that attribute itself.
type Dictionary map[string][][]byte

// NewDictionary builds a Dictionary from an entry.
func NewDictionary(e *Entry) Dictionary {
	d := make(Dictionary, e.Attributes.Len()+1)
	for _, attr := range e.Attributes.All() {
		d[attr.Name] = attr.Values
	}
	if _, ok := d.Get(DNKey); !ok {
		d[DNKey] = [][]byte{[]byte(e.DN)}
	}
	return d
}

// Get looks up name case-insensitively.
func (d Dictionary) Get(name string) ([][]byte, bool) {
	if v, ok := d[name]; ok {
		return v, true
	}
	for k, v := range d {
		if EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// DN returns the stored distinguished name.
func (d Dictionary) DN() string {
	v, ok := d.Get(DNKey)
	if !ok || len(v) == 0 {
		return ""
	}
	return string(v[0])
}
