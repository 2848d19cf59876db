package filter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// TestParse tests parsing of each filter form.
func TestParse(t *testing.T) {
	t.Run("equality with escapes", func(t *testing.T) {
		f, err := Parse(`(cn=a\2ab\28c\29\5c)`)
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != FilterEquality || f.Attribute != "cn" {
			t.Fatalf("got %s %q", f.Type, f.Attribute)
		}
		if !bytes.Equal(f.Value, []byte(`a*b(c)\`)) {
			t.Errorf("value = %q", f.Value)
		}
	})

	t.Run("binary escape", func(t *testing.T) {
		f, err := Parse(`(objectGUID=\00\ff\10)`)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(f.Value, []byte{0x00, 0xFF, 0x10}) {
			t.Errorf("value = % x", f.Value)
		}
	})

	t.Run("substring", func(t *testing.T) {
		f, err := Parse("(cn=ab*cd*ef)")
		if err != nil {
			t.Fatal(err)
		}
		sf := f.Substring
		if f.Type != FilterSubstring || sf == nil {
			t.Fatalf("got %s", f.Type)
		}
		if string(sf.Initial) != "ab" || len(sf.Any) != 1 || string(sf.Any[0]) != "cd" || string(sf.Final) != "ef" {
			t.Errorf("substring = %+v", sf)
		}
	})

	t.Run("bare item is wrapped", func(t *testing.T) {
		f, err := Parse("uid=alice")
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != FilterEquality || string(f.Value) != "alice" {
			t.Errorf("got %s %q", f.Type, f.Value)
		}
	})

	t.Run("extensible", func(t *testing.T) {
		f, err := Parse("(cn:dn:2.5.13.5:=Fred)")
		if err != nil {
			t.Fatal(err)
		}
		if f.Type != FilterExtensibleMatch || f.Attribute != "cn" || f.MatchingRule != "2.5.13.5" || !f.DNAttributes {
			t.Errorf("got %+v", f)
		}
	})

	t.Run("extensible without attribute", func(t *testing.T) {
		f, err := Parse("(:1.2.3:=x)")
		if err != nil {
			t.Fatal(err)
		}
		if f.Attribute != "" || f.MatchingRule != "1.2.3" {
			t.Errorf("got %+v", f)
		}
	})
}

// TestParseErrors tests rejection of malformed filters.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrEmptyFilter},
		{"()", ErrEmptyFilter},
		{"(cn=a", ErrUnbalancedParens},
		{"(&)", ErrInvalidFilter},
		{"(=x)", ErrMissingAttribute},
		{"(>=x)", ErrMissingAttribute},
		{"(cn)", ErrInvalidFilter},
		{`(cn=\zz)`, ErrInvalidEscape},
		{`(cn=abc\2)`, ErrInvalidEscape},
		{"(cn=a)(sn=b)", ErrInvalidFilter},
		{"(cn=a(b)", ErrInvalidFilter},
		{"(:=x)", ErrMissingAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, tt.err) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.input, err, tt.err)
			}
		})
	}
}

// TestStringRoundTrip tests that String output parses back to the same filter.
func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"(uid=alice)",
		`(cn=a\2ab\28\29)`,
		"(&(objectClass=user)(|(sn=Sm*th)(!(mail=*))))",
		"(uidNumber>=1000)",
		"(cn~=fred)",
		"(cn=*mid*)",
		"(member:1.2.840.113556.1.4.1941:=cn=x)",
	}

	for _, in := range inputs {
		f, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		out := f.String()
		if out != in {
			t.Errorf("String() = %q, want %q", out, in)
		}
	}
}

// TestBERRoundTrip tests encoding filters to BER and decoding them back.
func TestBERRoundTrip(t *testing.T) {
	inputs := []string{
		"(objectClass=*)",
		"(&(objectClass=user)(|(sn=Sm*th)(!(mail=*))))",
		"(cn=*mid*end)",
		"(cn:dn:2.5.13.5:=Fred)",
		"(uidNumber<=10)",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			f, err := Parse(in)
			if err != nil {
				t.Fatal(err)
			}
			enc := ber.NewBEREncoder(64)
			if err := f.Encode(enc); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			dec := ber.NewBERDecoder(enc.Bytes())
			got, err := Decode(dec)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if dec.Remaining() != 0 {
				t.Errorf("%d trailing bytes", dec.Remaining())
			}
			if got.String() != in {
				t.Errorf("decoded = %q, want %q", got.String(), in)
			}
		})
	}
}

func TestPresentFilterEncoding(t *testing.T) {
	enc := ber.NewBEREncoder(16)
	if err := NewPresentFilter("objectClass").Encode(enc); err != nil {
		t.Fatal(err)
	}
	want := append([]byte{0x87, 0x0B}, "objectClass"...)
	if !bytes.Equal(enc.Bytes(), want) {
		t.Errorf("got % x, want % x", enc.Bytes(), want)
	}
}
