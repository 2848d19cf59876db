package filter

import (
	"strings"
	"testing"
)

// mapEntry is a minimal Entry with case-insensitive attribute lookup.
type mapEntry struct {
	dn    string
	attrs map[string][]string
}

func (m mapEntry) DistinguishedName() string { return m.dn }

func (m mapEntry) Values(attr string) [][]byte {
	for name, values := range m.attrs {
		if strings.EqualFold(name, attr) {
			out := make([][]byte, len(values))
			for i, v := range values {
				out[i] = []byte(v)
			}
			return out
		}
	}
	return nil
}

func testEntry() mapEntry {
	return mapEntry{
		dn: "uid=alice,ou=People,dc=example,dc=com",
		attrs: map[string][]string{
			"uid":                {"alice"},
			"cn":                 {"Alice Smith"},
			"mail":               {"alice@example.com"},
			"objectClass":        {"top", "person", "user"},
			"uidNumber":          {"1000"},
			"userAccountControl": {"514"},
		},
	}
}

// TestEvaluate tests evaluation of parsed filters against an entry.
func TestEvaluate(t *testing.T) {
	e := NewEvaluator()
	entry := testEntry()

	tests := []struct {
		filter   string
		expected bool
	}{
		{"(uid=alice)", true},
		{"(UID=ALICE)", true},
		{"(uid=bob)", false},
		{"(mail=*)", true},
		{"(telephoneNumber=*)", false},
		{"(cn=Ali*)", true},
		{"(cn=*smith)", true},
		{"(cn=*x*)", false},
		{"(uidNumber>=500)", true},
		{"(uidNumber<=999)", false},
		{"(cn~=alice   smith)", true},
		{"(&(objectClass=user)(|(uid=alice)(uid=bob)))", true},
		{"(&(objectClass=user)(!(uid=alice)))", false},
		{"(|(uid=bob)(uid=carol))", false},
		{"(userAccountControl:1.2.840.113556.1.4.803:=2)", true},
		{"(userAccountControl:1.2.840.113556.1.4.803:=3)", false},
		{"(userAccountControl:1.2.840.113556.1.4.804:=3)", true},
		{"(ou:dn:=People)", true},
		{"(ou:=People)", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := Parse(tt.filter)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.filter, err)
			}
			if got := e.Evaluate(f, entry); got != tt.expected {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.filter, got, tt.expected)
			}
		})
	}
}

// TestEvaluateNilInputs tests that nil filters and entries never match.
func TestEvaluateNilInputs(t *testing.T) {
	e := NewEvaluator()
	if e.Evaluate(nil, testEntry()) {
		t.Error("nil filter matched")
	}
	if e.Evaluate(NewPresentFilter("cn"), nil) {
		t.Error("nil entry matched")
	}
	if e.Evaluate(&Filter{Type: FilterType(99)}, testEntry()) {
		t.Error("unknown filter type matched")
	}
}

func TestFilterTypeString(t *testing.T) {
	tests := []struct {
		ft       FilterType
		expected string
	}{
		{FilterAnd, "AND"},
		{FilterSubstring, "SUBSTRING"},
		{FilterExtensibleMatch, "EXTENSIBLE_MATCH"},
		{FilterType(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.expected {
			t.Errorf("FilterType(%d).String() = %q, want %q", int(tt.ft), got, tt.expected)
		}
	}
}
