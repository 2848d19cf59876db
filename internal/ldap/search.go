package ldap

import (
	"errors"
	"strings"

	"github.com/KilimcininKorOglu/dirquery/internal/ber"
	"github.com/KilimcininKorOglu/dirquery/internal/filter"
)

// SearchScope represents the scope of an LDAP search operation
type SearchScope int

const (
	// ScopeBaseObject searches only the base object
	ScopeBaseObject SearchScope = 0
	// ScopeSingleLevel searches one level below the base object
	ScopeSingleLevel SearchScope = 1
	// ScopeWholeSubtree searches the entire subtree
	ScopeWholeSubtree SearchScope = 2
)

// String returns the string representation of the search scope
func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// ParseScope accepts the names produced by String plus the long RFC forms.
func ParseScope(s string) (SearchScope, error) {
	switch strings.ToLower(s) {
	case "base", "baseobject":
		return ScopeBaseObject, nil
	case "one", "onelevel", "singlelevel":
		return ScopeSingleLevel, nil
	case "sub", "subtree", "wholesubtree", "":
		return ScopeWholeSubtree, nil
	}
	return 0, ErrInvalidSearchScope
}

// DerefAliases represents how aliases should be dereferenced during search
type DerefAliases int

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// NoAttributes is the attribute selector that asks the server to return no
// attributes at all (RFC 4511 Section 4.5.1.8).
const NoAttributes = "1.1"

// SearchRequest represents an LDAP Search Request
// SearchRequest ::= [APPLICATION 3] SEQUENCE {
//
//	baseObject      LDAPDN,
//	scope           ENUMERATED { baseObject(0), singleLevel(1), wholeSubtree(2) },
//	derefAliases    ENUMERATED { ... },
//	sizeLimit       INTEGER (0 .. maxInt),
//	timeLimit       INTEGER (0 .. maxInt),
//	typesOnly       BOOLEAN,
//	filter          Filter,
//	attributes      AttributeSelection
//
// }
//
// Filter holds the RFC 4515 string form; it is compiled when the request is
// encoded. Controls travel in the message envelope.
type SearchRequest struct {
	BaseObject   string
	Scope        SearchScope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       string
	Attributes   []string
	Controls     []Control
}

// Errors for SearchRequest handling
var (
	// ErrInvalidSearchScope is returned when the search scope is invalid
	ErrInvalidSearchScope = errors.New("ldap: invalid search scope")
	// ErrInvalidDerefAliases is returned when the deref aliases value is invalid
	ErrInvalidDerefAliases = errors.New("ldap: invalid deref aliases value")
	// ErrInvalidLimit is returned for negative size or time limits
	ErrInvalidLimit = errors.New("ldap: size and time limits must not be negative")
)

// Clone returns a copy that shares no slices with r.
func (r *SearchRequest) Clone() *SearchRequest {
	c := *r
	c.Attributes = append([]string(nil), r.Attributes...)
	c.Controls = append([]Control(nil), r.Controls...)
	return &c
}

// Encode encodes the request contents (without the APPLICATION tag).
func (r *SearchRequest) Encode() ([]byte, error) {
	if r.Scope < ScopeBaseObject || r.Scope > ScopeWholeSubtree {
		return nil, ErrInvalidSearchScope
	}
	if r.DerefAliases < DerefNever || r.DerefAliases > DerefAlways {
		return nil, ErrInvalidDerefAliases
	}
	if r.SizeLimit < 0 || r.TimeLimit < 0 {
		return nil, ErrInvalidLimit
	}

	filterStr := r.Filter
	if strings.TrimSpace(filterStr) == "" {
		filterStr = "(objectClass=*)"
	}
	f, err := filter.Parse(filterStr)
	if err != nil {
		return nil, err
	}

	encoder := ber.NewBEREncoder(128 + len(filterStr))

	if err := encoder.WriteOctetString([]byte(r.BaseObject)); err != nil {
		return nil, err
	}
	if err := encoder.WriteEnumerated(int64(r.Scope)); err != nil {
		return nil, err
	}
	if err := encoder.WriteEnumerated(int64(r.DerefAliases)); err != nil {
		return nil, err
	}
	if err := encoder.WriteInteger(int64(r.SizeLimit)); err != nil {
		return nil, err
	}
	if err := encoder.WriteInteger(int64(r.TimeLimit)); err != nil {
		return nil, err
	}
	if err := encoder.WriteBoolean(r.TypesOnly); err != nil {
		return nil, err
	}
	if err := f.Encode(encoder); err != nil {
		return nil, err
	}

	attrPos := encoder.BeginSequence()
	for _, attr := range r.Attributes {
		if err := encoder.WriteOctetString([]byte(attr)); err != nil {
			return nil, err
		}
	}
	if err := encoder.EndSequence(attrPos); err != nil {
		return nil, err
	}

	return encoder.Bytes(), nil
}

// Message wraps the request in an LDAPMessage with its controls.
func (r *SearchRequest) Message(messageID int) (*LDAPMessage, error) {
	data, err := r.Encode()
	if err != nil {
		return nil, err
	}
	return &LDAPMessage{
		MessageID: messageID,
		Operation: &RawOperation{Tag: ApplicationSearchRequest, Data: data},
		Controls:  r.Controls,
	}, nil
}

// ParseSearchRequest parses a SearchRequest from raw operation data. The
// filter is rendered back to its canonical string form. Controls are not part
// of the operation and must be copied from the envelope by the caller.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty search request data", nil)
	}

	decoder := ber.NewBERDecoder(data)
	req := &SearchRequest{}

	baseBytes, err := decoder.ReadOctetString()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read baseObject", err)
	}
	req.BaseObject = string(baseBytes)

	scope, err := decoder.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read scope", err)
	}
	if scope < 0 || scope > 2 {
		return nil, ErrInvalidSearchScope
	}
	req.Scope = SearchScope(scope)

	deref, err := decoder.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read derefAliases", err)
	}
	if deref < 0 || deref > 3 {
		return nil, ErrInvalidDerefAliases
	}
	req.DerefAliases = DerefAliases(deref)

	sizeLimit, err := decoder.ReadInteger()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read sizeLimit", err)
	}
	req.SizeLimit = int(sizeLimit)

	timeLimit, err := decoder.ReadInteger()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read timeLimit", err)
	}
	req.TimeLimit = int(timeLimit)

	if req.TypesOnly, err = decoder.ReadBoolean(); err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read typesOnly", err)
	}

	f, err := filter.Decode(decoder)
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read filter", err)
	}
	req.Filter = f.String()

	attrs, err := decoder.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read attributes sequence", err)
	}
	for attrs.Remaining() > 0 {
		attr, err := attrs.ReadOctetString()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read attribute", err)
		}
		req.Attributes = append(req.Attributes, string(attr))
	}

	return req, nil
}
