package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// AuthSimple is the context tag of simple authentication [0].
const AuthSimple = 0

// ProtocolVersion is the only LDAP version this package speaks.
const ProtocolVersion = 3

// BindRequest represents a simple LDAP Bind Request
// BindRequest ::= [APPLICATION 0] SEQUENCE {
//
//	version                 INTEGER (1 .. 127),
//	name                    LDAPDN,
//	authentication          AuthenticationChoice
//
// }
type BindRequest struct {
	Version  int
	Name     string
	Password []byte
}

// Errors for BindRequest handling
var (
	// ErrInvalidBindVersion is returned when the bind version is out of range
	ErrInvalidBindVersion = errors.New("ldap: bind version must be between 1 and 127")
	// ErrUnknownAuthMethod is returned for any authentication choice but simple
	ErrUnknownAuthMethod = errors.New("ldap: unsupported authentication method")
	// ErrUnauthenticatedBind is returned for a name with an empty password,
	// which servers treat as an unauthenticated bind (RFC 4513 Section 5.1.2)
	ErrUnauthenticatedBind = errors.New("ldap: bind name given without password")
)

// NewSimpleBind creates a version 3 simple bind request.
func NewSimpleBind(name string, password []byte) *BindRequest {
	return &BindRequest{Version: ProtocolVersion, Name: name, Password: password}
}

// IsAnonymous returns true if this is an anonymous bind request.
func (r *BindRequest) IsAnonymous() bool {
	return r.Name == "" && len(r.Password) == 0
}

// Encode encodes the BindRequest contents (without the APPLICATION tag).
func (r *BindRequest) Encode() ([]byte, error) {
	if r.Version < 1 || r.Version > 127 {
		return nil, ErrInvalidBindVersion
	}
	if r.Name != "" && len(r.Password) == 0 {
		return nil, ErrUnauthenticatedBind
	}

	encoder := ber.NewBEREncoder(64 + len(r.Name))
	if err := encoder.WriteInteger(int64(r.Version)); err != nil {
		return nil, err
	}
	if err := encoder.WriteOctetString([]byte(r.Name)); err != nil {
		return nil, err
	}
	if err := encoder.WriteTaggedValue(AuthSimple, false, r.Password); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ParseBindRequest parses a BindRequest from raw operation data.
func ParseBindRequest(data []byte) (*BindRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty bind request data", nil)
	}

	decoder := ber.NewBERDecoder(data)
	req := &BindRequest{}

	version, err := decoder.ReadInteger()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read bind version", err)
	}
	if version < 1 || version > 127 {
		return nil, ErrInvalidBindVersion
	}
	req.Version = int(version)

	name, err := decoder.ReadOctetString()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read bind name", err)
	}
	req.Name = string(name)

	tagNum, _, auth, err := decoder.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read authentication", err)
	}
	if tagNum != AuthSimple {
		return nil, ErrUnknownAuthMethod
	}
	req.Password = auth

	return req, nil
}
