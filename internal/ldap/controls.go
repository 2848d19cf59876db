package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// Control OIDs.
const (
	// PagedResultsOID is the Simple Paged Results Control (RFC 2696).
	PagedResultsOID = "1.2.840.113556.1.4.319"
	// SortRequestOID is the Server-Side Sorting Request Control (RFC 2891).
	SortRequestOID = "1.2.840.113556.1.4.473"
	// SortResponseOID is the Server-Side Sorting Response Control (RFC 2891).
	SortResponseOID = "1.2.840.113556.1.4.474"
)

// ErrMalformedControl is returned when a control value cannot be decoded.
var ErrMalformedControl = errors.New("ldap: malformed control value")

// PagedResultsControl represents the Simple Paged Results Control (RFC 2696).
//
// realSearchControlValue ::= SEQUENCE {
//
//	size            INTEGER (0..maxInt),
//	                        -- requested page size from client
//	                        -- result set size estimate from server
//	cookie          OCTET STRING
//
// }
type PagedResultsControl struct {
	// Size is the requested page size (client) or result estimate (server).
	Size int32
	// Cookie is an opaque cursor. Empty on the first request and on the
	// last page.
	Cookie []byte
	// Criticality indicates whether the control is critical.
	Criticality bool
}

// ParsePagedResultsControl decodes a paged results control value.
func ParsePagedResultsControl(ctrl Control) (*PagedResultsControl, error) {
	if ctrl.OID != PagedResultsOID {
		return nil, ErrMalformedControl
	}

	prc := &PagedResultsControl{Criticality: ctrl.Criticality}
	if len(ctrl.Value) == 0 {
		return prc, nil
	}

	seq, err := ber.NewBERDecoder(ctrl.Value).ReadSequenceContents()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}
	size, err := seq.ReadInteger()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}
	prc.Size = int32(size)

	cookie, err := seq.ReadOctetString()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}
	prc.Cookie = cookie

	return prc, nil
}

// Encode encodes the control value.
func (p *PagedResultsControl) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(16 + len(p.Cookie))
	seqPos := encoder.BeginSequence()
	if err := encoder.WriteInteger(int64(p.Size)); err != nil {
		return nil, err
	}
	if err := encoder.WriteOctetString(p.Cookie); err != nil {
		return nil, err
	}
	if err := encoder.EndSequence(seqPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ToLDAPControl converts the PagedResultsControl to a Control.
func (p *PagedResultsControl) ToLDAPControl() (Control, error) {
	value, err := p.Encode()
	if err != nil {
		return Control{}, err
	}
	return Control{OID: PagedResultsOID, Criticality: p.Criticality, Value: value}, nil
}

// FindPagedResultsControl returns the paged results control among controls,
// or nil when there is none.
func FindPagedResultsControl(controls []Control) (*PagedResultsControl, error) {
	ctrl, ok := FindControl(controls, PagedResultsOID)
	if !ok {
		return nil, nil
	}
	return ParsePagedResultsControl(ctrl)
}

// SortKey represents a single sort key for ordering search results.
type SortKey struct {
	// Attribute is the attribute name to sort by.
	Attribute string
	// OrderingRule is an optional matching rule OID for comparison.
	OrderingRule string
	// Reverse sorts in descending order.
	Reverse bool
}

// Sort key component tags (RFC 2891 Section 1.1).
const (
	sortTagOrderingRule = 0
	sortTagReverse      = 1
	sortTagAttribute    = 0
)

// SortControl represents the Server-Side Sorting Request Control.
//
//	SortKeyList ::= SEQUENCE OF SEQUENCE {
//	    attributeType   AttributeDescription,
//	    orderingRule    [0] MatchingRuleId OPTIONAL,
//	    reverseOrder    [1] BOOLEAN DEFAULT FALSE }
type SortControl struct {
	Keys        []SortKey
	Criticality bool
}

// NewSortControl creates a new SortControl with the given sort keys.
func NewSortControl(keys ...SortKey) *SortControl {
	return &SortControl{Keys: keys}
}

// Encode encodes the control value.
func (s *SortControl) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(32)
	listPos := encoder.BeginSequence()
	for _, key := range s.Keys {
		keyPos := encoder.BeginSequence()
		if err := encoder.WriteOctetString([]byte(key.Attribute)); err != nil {
			return nil, err
		}
		if key.OrderingRule != "" {
			if err := encoder.WriteTaggedValue(sortTagOrderingRule, false, []byte(key.OrderingRule)); err != nil {
				return nil, err
			}
		}
		if key.Reverse {
			if err := encoder.WriteTaggedValue(sortTagReverse, false, []byte{0xFF}); err != nil {
				return nil, err
			}
		}
		if err := encoder.EndSequence(keyPos); err != nil {
			return nil, err
		}
	}
	if err := encoder.EndSequence(listPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ToLDAPControl converts the SortControl to a Control.
func (s *SortControl) ToLDAPControl() (Control, error) {
	value, err := s.Encode()
	if err != nil {
		return Control{}, err
	}
	return Control{OID: SortRequestOID, Criticality: s.Criticality, Value: value}, nil
}

// ParseSortControl decodes a sort request control value.
func ParseSortControl(ctrl Control) (*SortControl, error) {
	if ctrl.OID != SortRequestOID {
		return nil, ErrMalformedControl
	}
	list, err := ber.NewBERDecoder(ctrl.Value).ReadSequenceContents()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}

	sc := &SortControl{Criticality: ctrl.Criticality}
	for list.Remaining() > 0 {
		seq, err := list.ReadSequenceContents()
		if err != nil {
			return nil, errors.Join(ErrMalformedControl, err)
		}
		attr, err := seq.ReadOctetString()
		if err != nil {
			return nil, errors.Join(ErrMalformedControl, err)
		}
		key := SortKey{Attribute: string(attr)}
		for seq.Remaining() > 0 {
			num, _, value, err := seq.ReadTaggedValue()
			if err != nil {
				return nil, errors.Join(ErrMalformedControl, err)
			}
			switch num {
			case sortTagOrderingRule:
				key.OrderingRule = string(value)
			case sortTagReverse:
				key.Reverse = len(value) > 0 && value[0] != 0
			}
		}
		if key.Attribute == "" {
			return nil, ErrMalformedControl
		}
		sc.Keys = append(sc.Keys, key)
	}
	return sc, nil
}

// SortResponse is the Server-Side Sorting Response Control.
//
//	SortResult ::= SEQUENCE {
//	    sortResult  ENUMERATED { ... },
//	    attributeType [0] AttributeDescription OPTIONAL }
type SortResponse struct {
	ResultCode    ResultCode
	AttributeType string
}

// ToLDAPControl encodes the response as a Control.
func (s *SortResponse) ToLDAPControl() (Control, error) {
	encoder := ber.NewBEREncoder(32)
	pos := encoder.BeginSequence()
	if err := encoder.WriteEnumerated(int64(s.ResultCode)); err != nil {
		return Control{}, err
	}
	if s.AttributeType != "" {
		if err := encoder.WriteTaggedValue(sortTagAttribute, false, []byte(s.AttributeType)); err != nil {
			return Control{}, err
		}
	}
	if err := encoder.EndSequence(pos); err != nil {
		return Control{}, err
	}
	return Control{OID: SortResponseOID, Value: encoder.Bytes()}, nil
}

// ParseSortResponse decodes a sort response control value.
func ParseSortResponse(ctrl Control) (*SortResponse, error) {
	if ctrl.OID != SortResponseOID {
		return nil, ErrMalformedControl
	}
	seq, err := ber.NewBERDecoder(ctrl.Value).ReadSequenceContents()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}
	code, err := seq.ReadEnumerated()
	if err != nil {
		return nil, errors.Join(ErrMalformedControl, err)
	}
	resp := &SortResponse{ResultCode: ResultCode(code)}
	if seq.Remaining() > 0 {
		_, _, attr, err := seq.ReadTaggedValue()
		if err != nil {
			return nil, errors.Join(ErrMalformedControl, err)
		}
		resp.AttributeType = string(attr)
	}
	return resp, nil
}
