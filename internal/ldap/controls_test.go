package ldap

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestPagedResultsControl(t *testing.T) {
	tests := []struct {
		name    string
		control PagedResultsControl
		encoded []byte
	}{
		{
			name:    "first page",
			control: PagedResultsControl{Size: 100},
			encoded: []byte{0x30, 0x05, 0x02, 0x01, 0x64, 0x04, 0x00},
		},
		{
			name:    "with cookie",
			control: PagedResultsControl{Size: 500, Cookie: []byte{0xAB, 0xCD}},
			encoded: []byte{0x30, 0x08, 0x02, 0x02, 0x01, 0xF4, 0x04, 0x02, 0xAB, 0xCD},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, err := tt.control.ToLDAPControl()
			if err != nil {
				t.Fatalf("ToLDAPControl: %v", err)
			}
			if ctrl.OID != PagedResultsOID {
				t.Errorf("OID = %q", ctrl.OID)
			}
			if !bytes.Equal(ctrl.Value, tt.encoded) {
				t.Errorf("value = % x, want % x", ctrl.Value, tt.encoded)
			}
			got, err := ParsePagedResultsControl(ctrl)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Size != tt.control.Size || !bytes.Equal(got.Cookie, tt.control.Cookie) {
				t.Errorf("got %+v, want %+v", got, tt.control)
			}
		})
	}
}

func TestFindPagedResultsControl(t *testing.T) {
	got, err := FindPagedResultsControl([]Control{{OID: SortResponseOID}})
	if err != nil || got != nil {
		t.Errorf("FindPagedResultsControl(no paged) = %v, %v", got, err)
	}

	_, err = FindPagedResultsControl([]Control{{OID: PagedResultsOID, Value: []byte{0x04, 0x00}}})
	if !errors.Is(err, ErrMalformedControl) {
		t.Errorf("malformed value: error = %v", err)
	}
}

func TestSortControl(t *testing.T) {
	sc := NewSortControl(SortKey{Attribute: "cn", Reverse: true})
	value, err := sc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x30, 0x09, 0x30, 0x07, 0x04, 0x02, 'c', 'n', 0x81, 0x01, 0xFF}
	if !bytes.Equal(value, want) {
		t.Errorf("value = % x, want % x", value, want)
	}

	multi := NewSortControl(
		SortKey{Attribute: "sn", OrderingRule: "2.5.13.3"},
		SortKey{Attribute: "givenName"},
	)
	ctrl, err := multi.ToLDAPControl()
	if err != nil {
		t.Fatalf("ToLDAPControl: %v", err)
	}
	got, err := ParseSortControl(ctrl)
	if err != nil {
		t.Fatalf("ParseSortControl: %v", err)
	}
	if !reflect.DeepEqual(got.Keys, multi.Keys) {
		t.Errorf("keys = %+v, want %+v", got.Keys, multi.Keys)
	}
}

func TestSortResponse(t *testing.T) {
	tests := []SortResponse{
		{ResultCode: ResultSuccess},
		{ResultCode: ResultNoSuchAttribute, AttributeType: "employeeNumber"},
	}
	for _, want := range tests {
		ctrl, err := want.ToLDAPControl()
		if err != nil {
			t.Fatalf("ToLDAPControl: %v", err)
		}
		resp := &SearchResponse{Controls: []Control{ctrl}}
		got, err := resp.Sort()
		if err != nil {
			t.Fatalf("Sort: %v", err)
		}
		if *got != want {
			t.Errorf("got %+v, want %+v", *got, want)
		}
	}
}

func TestSearchResponse(t *testing.T) {
	ctrl, _ := (&PagedResultsControl{Cookie: []byte("next")}).ToLDAPControl()
	resp := &SearchResponse{Result: NewSuccessResult(), Controls: []Control{ctrl}}
	if err := resp.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
	paged, err := resp.PagedResults()
	if err != nil || paged == nil || string(paged.Cookie) != "next" {
		t.Errorf("PagedResults() = %+v, %v", paged, err)
	}

	resp = &SearchResponse{Result: NewErrorResult(ResultNoSuchObject, "")}
	if !IsResultCode(resp.Err(), ResultNoSuchObject) {
		t.Errorf("Err() = %v, want noSuchObject", resp.Err())
	}
	if s, err := resp.Sort(); s != nil || err != nil {
		t.Errorf("Sort() = %v, %v, want nil", s, err)
	}
}
