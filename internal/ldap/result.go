package ldap

import (
	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// Context-specific tags for response fields
const (
	// ContextTagReferral is the tag for referral URIs in LDAPResult [3]
	ContextTagReferral = 3
	// ContextTagServerSASLCreds is the tag for server SASL credentials in BindResponse [7]
	ContextTagServerSASLCreds = 7
)

// NewMessage builds an envelope around already encoded operation contents.
func NewMessage(messageID, tag int, data []byte, controls ...Control) *LDAPMessage {
	return &LDAPMessage{
		MessageID: messageID,
		Operation: &RawOperation{Tag: tag, Data: data},
		Controls:  controls,
	}
}

// LDAPResult represents the common result structure used in most LDAP responses.
// Per RFC 4511 Section 4.1.9:
// LDAPResult ::= SEQUENCE {
//
//	resultCode         ENUMERATED { ... },
//	matchedDN          LDAPDN,
//	diagnosticMessage  LDAPString,
//	referral           [3] Referral OPTIONAL
//
// }
type LDAPResult struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referral          []string
}

// Err returns a *ResultError for non-success codes and nil otherwise.
func (r LDAPResult) Err(op OperationType) error {
	if r.ResultCode == ResultSuccess {
		return nil
	}
	return &ResultError{Operation: op, Result: r}
}

// encode writes the LDAPResult components (without outer tag).
func (r *LDAPResult) encode(encoder *ber.BEREncoder) error {
	if err := encoder.WriteEnumerated(int64(r.ResultCode)); err != nil {
		return err
	}
	if err := encoder.WriteOctetString([]byte(r.MatchedDN)); err != nil {
		return err
	}
	if err := encoder.WriteOctetString([]byte(r.DiagnosticMessage)); err != nil {
		return err
	}

	if len(r.Referral) > 0 {
		refPos := encoder.WriteContextTag(ContextTagReferral, true)
		for _, uri := range r.Referral {
			if err := encoder.WriteOctetString([]byte(uri)); err != nil {
				return err
			}
		}
		if err := encoder.EndContextTag(refPos); err != nil {
			return err
		}
	}
	return nil
}

// parseLDAPResult reads the LDAPResult components, leaving any trailing
// operation-specific fields in the decoder.
func parseLDAPResult(decoder *ber.BERDecoder) (LDAPResult, error) {
	var r LDAPResult

	code, err := decoder.ReadEnumerated()
	if err != nil {
		return r, NewParseError(decoder.Offset(), "failed to read resultCode", err)
	}
	r.ResultCode = ResultCode(code)

	matched, err := decoder.ReadOctetString()
	if err != nil {
		return r, NewParseError(decoder.Offset(), "failed to read matchedDN", err)
	}
	r.MatchedDN = string(matched)

	diag, err := decoder.ReadOctetString()
	if err != nil {
		return r, NewParseError(decoder.Offset(), "failed to read diagnosticMessage", err)
	}
	r.DiagnosticMessage = string(diag)

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagReferral) {
		refs, err := decoder.ReadContextTagContents(ContextTagReferral)
		if err != nil {
			return r, NewParseError(decoder.Offset(), "failed to read referral", err)
		}
		for refs.Remaining() > 0 {
			uri, err := refs.ReadOctetString()
			if err != nil {
				return r, NewParseError(decoder.Offset(), "failed to read referral URI", err)
			}
			r.Referral = append(r.Referral, string(uri))
		}
	}
	return r, nil
}

// BindResponse represents an LDAP Bind response.
// BindResponse ::= [APPLICATION 1] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	serverSaslCreds    [7] OCTET STRING OPTIONAL
//
// }
type BindResponse struct {
	LDAPResult
	ServerSASLCreds []byte
}

// Encode encodes the response contents (without the APPLICATION tag).
func (r *BindResponse) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(64)
	if err := r.LDAPResult.encode(encoder); err != nil {
		return nil, err
	}
	if len(r.ServerSASLCreds) > 0 {
		if err := encoder.WriteTaggedValue(ContextTagServerSASLCreds, false, r.ServerSASLCreds); err != nil {
			return nil, err
		}
	}
	return encoder.Bytes(), nil
}

// ParseBindResponse parses the contents of a BindResponse.
func ParseBindResponse(data []byte) (*BindResponse, error) {
	decoder := ber.NewBERDecoder(data)
	result, err := parseLDAPResult(decoder)
	if err != nil {
		return nil, err
	}
	resp := &BindResponse{LDAPResult: result}
	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagServerSASLCreds) {
		_, _, creds, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read serverSaslCreds", err)
		}
		resp.ServerSASLCreds = creds
	}
	return resp, nil
}

// PartialAttribute represents an attribute with its values.
// PartialAttribute ::= SEQUENCE {
//
//	type       AttributeDescription,
//	vals       SET OF value AttributeValue
//
// }
type PartialAttribute struct {
	Type   string
	Values [][]byte
}

// SearchResultEntry represents a search result entry.
// SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//
//	objectName      LDAPDN,
//	attributes      PartialAttributeList
//
// }
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

// Encode encodes the entry contents (without the APPLICATION tag).
func (r *SearchResultEntry) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(256)

	if err := encoder.WriteOctetString([]byte(r.ObjectName)); err != nil {
		return nil, err
	}

	attrSeqPos := encoder.BeginSequence()
	for _, attr := range r.Attributes {
		partialAttrPos := encoder.BeginSequence()
		if err := encoder.WriteOctetString([]byte(attr.Type)); err != nil {
			return nil, err
		}
		valsPos := encoder.BeginSet()
		for _, val := range attr.Values {
			if err := encoder.WriteOctetString(val); err != nil {
				return nil, err
			}
		}
		if err := encoder.EndSet(valsPos); err != nil {
			return nil, err
		}
		if err := encoder.EndSequence(partialAttrPos); err != nil {
			return nil, err
		}
	}
	if err := encoder.EndSequence(attrSeqPos); err != nil {
		return nil, err
	}

	return encoder.Bytes(), nil
}

// ParseSearchResultEntry parses the contents of a SearchResultEntry.
func ParseSearchResultEntry(data []byte) (*SearchResultEntry, error) {
	decoder := ber.NewBERDecoder(data)

	name, err := decoder.ReadOctetString()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read objectName", err)
	}
	entry := &SearchResultEntry{ObjectName: string(name)}

	attrs, err := decoder.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read attribute list", err)
	}
	for attrs.Remaining() > 0 {
		partial, err := attrs.ReadSequenceContents()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read partial attribute", err)
		}
		typ, err := partial.ReadOctetString()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read attribute type", err)
		}
		vals, err := partial.ReadSetContents()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read attribute values", err)
		}
		attr := PartialAttribute{Type: string(typ)}
		for vals.Remaining() > 0 {
			v, err := vals.ReadOctetString()
			if err != nil {
				return nil, NewParseError(decoder.Offset(), "failed to read attribute value", err)
			}
			attr.Values = append(attr.Values, v)
		}
		entry.Attributes = append(entry.Attributes, attr)
	}
	return entry, nil
}

// SearchResultDone represents the final response to a search operation.
// SearchResultDone ::= [APPLICATION 5] LDAPResult
type SearchResultDone struct {
	LDAPResult
}

// Encode encodes the result contents (without the APPLICATION tag).
func (r *SearchResultDone) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(64)
	if err := r.LDAPResult.encode(encoder); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ParseSearchResultDone parses the contents of a SearchResultDone.
func ParseSearchResultDone(data []byte) (*SearchResultDone, error) {
	result, err := parseLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &SearchResultDone{LDAPResult: result}, nil
}

// EncodeSearchResultReference encodes the URIs of a continuation reference.
// SearchResultReference ::= [APPLICATION 19] SEQUENCE SIZE (1..MAX) OF uri URI
func EncodeSearchResultReference(uris []string) ([]byte, error) {
	encoder := ber.NewBEREncoder(64)
	for _, uri := range uris {
		if err := encoder.WriteOctetString([]byte(uri)); err != nil {
			return nil, err
		}
	}
	return encoder.Bytes(), nil
}

// ParseSearchResultReference parses the URIs of a continuation reference.
func ParseSearchResultReference(data []byte) ([]string, error) {
	decoder := ber.NewBERDecoder(data)
	var uris []string
	for decoder.Remaining() > 0 {
		uri, err := decoder.ReadOctetString()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read reference URI", err)
		}
		uris = append(uris, string(uri))
	}
	return uris, nil
}

// NewSuccessResult creates a new LDAPResult with success status.
func NewSuccessResult() LDAPResult {
	return LDAPResult{ResultCode: ResultSuccess}
}

// NewErrorResult creates a new LDAPResult with the specified error.
func NewErrorResult(code ResultCode, message string) LDAPResult {
	return LDAPResult{ResultCode: code, DiagnosticMessage: message}
}
