package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
)

// jsonEntry is the JSON form of one entry.
type jsonEntry struct {
	DN         string              `json:"dn"`
	Attributes map[string][]string `json:"attributes"`
}

type jsonResult struct {
	Entries    []jsonEntry `json:"entries"`
	References []string    `json:"references,omitempty"`
	Count      int         `json:"count"`
}

// printer writes entries as LDIF or collects them for a JSON document.
type printer struct {
	format string
	w      io.Writer
	count  int
	result jsonResult
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w, result: jsonResult{Entries: []jsonEntry{}}}
}

func (p *printer) entry(l directory.Listing) error {
	p.count++
	if p.format == "json" {
		je := jsonEntry{DN: l.DN, Attributes: make(map[string][]string)}
		for _, attr := range l.Attributes.All() {
			for _, v := range attr.Values {
				je.Attributes[attr.Name] = append(je.Attributes[attr.Name], jsonValue(v))
			}
		}
		p.result.Entries = append(p.result.Entries, je)
		return nil
	}

	if _, err := fmt.Fprintf(p.w, "dn: %s\n", l.DN); err != nil {
		return err
	}
	for _, attr := range l.Attributes.All() {
		for _, v := range attr.Values {
			if err := writeLDIFLine(p.w, attr.Name, v); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(p.w)
	return err
}

func (p *printer) reference(uri string) {
	if p.format == "json" {
		p.result.References = append(p.result.References, uri)
		return
	}
	fmt.Fprintf(p.w, "# refldap: %s\n", uri)
}

func (p *printer) flush() error {
	if p.format != "json" {
		_, err := fmt.Fprintf(p.w, "# numEntries: %d\n", p.count)
		return err
	}
	p.result.Count = p.count
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(p.result)
}

// writeLDIFLine writes "name: value", or "name:: base64" when the value is
// not safe as an LDIF string.
func writeLDIFLine(w io.Writer, name string, v []byte) error {
	if !safeLDIFString(v) {
		_, err := fmt.Fprintf(w, "%s:: %s\n", name, base64.StdEncoding.EncodeToString(v))
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", name, v)
	return err
}

// safeLDIFString follows RFC 2849's SAFE-STRING.
func safeLDIFString(v []byte) bool {
	if len(v) == 0 {
		return true
	}
	if !utf8.Valid(v) {
		return false
	}
	switch v[0] {
	case ' ', ':', '<':
		return false
	}
	if v[len(v)-1] == ' ' {
		return false
	}
	for _, b := range v {
		if b == 0 || b == '\n' || b == '\r' {
			return false
		}
	}
	return true
}

func jsonValue(v []byte) string {
	if utf8.Valid(v) {
		return string(v)
	}
	return base64.StdEncoding.EncodeToString(v)
}
