package ber

import (
	"errors"
)

// Errors returned by the encoder
var (
	ErrInvalidTagClass  = errors.New("ber: invalid tag class")
	ErrInvalidTagNumber = errors.New("ber: invalid tag number")
	ErrLengthOverflow   = errors.New("ber: length value overflow")
	ErrNegativeLength   = errors.New("ber: negative length not allowed")
	ErrInvalidPosition  = errors.New("ber: invalid constructed element position")
)

// BEREncoder encodes ASN.1 values using BER (Basic Encoding Rules).
type BEREncoder struct {
	buf []byte
}

// NewBEREncoder creates a new BER encoder with an optional initial capacity.
func NewBEREncoder(capacity int) *BEREncoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &BEREncoder{
		buf: make([]byte, 0, capacity),
	}
}

// Bytes returns the encoded bytes.
func (e *BEREncoder) Bytes() []byte {
	return e.buf
}

// Len returns the current length of encoded data.
func (e *BEREncoder) Len() int {
	return len(e.buf)
}

// WriteTag writes the identifier octet(s) for class, constructed flag and number.
func (e *BEREncoder) WriteTag(class, constructed, number int) error {
	if class != ClassUniversal && class != ClassApplication &&
		class != ClassContextSpecific && class != ClassPrivate {
		return ErrInvalidTagClass
	}
	if number < 0 {
		return ErrInvalidTagNumber
	}
	e.writeIdentifier(class, constructed, number)
	return nil
}

func (e *BEREncoder) writeIdentifier(class, constructed, number int) {
	if number <= 30 {
		e.buf = append(e.buf, byte(class)|byte(constructed)|byte(number))
		return
	}

	// Long form: low five bits set, number follows in base-128
	e.buf = append(e.buf, byte(class)|byte(constructed)|0x1F)
	var digits []byte
	for v := number; v > 0; v >>= 7 {
		digits = append([]byte{byte(v & 0x7F)}, digits...)
	}
	for i := 0; i < len(digits)-1; i++ {
		digits[i] |= 0x80
	}
	e.buf = append(e.buf, digits...)
}

// WriteLength writes a definite length, short form when it fits.
func (e *BEREncoder) WriteLength(length int) error {
	if length < 0 {
		return ErrNegativeLength
	}
	if length <= MaxShortFormLength {
		e.buf = append(e.buf, byte(length))
		return nil
	}
	lb := lengthOctets(length)
	if len(lb) > 127 {
		return ErrLengthOverflow
	}
	e.buf = append(e.buf, byte(LengthLongFormBit|len(lb)))
	e.buf = append(e.buf, lb...)
	return nil
}

// lengthOctets returns the big-endian octets of a long form length.
func lengthOctets(length int) []byte {
	var lb []byte
	for l := length; l > 0; l >>= 8 {
		lb = append([]byte{byte(l)}, lb...)
	}
	return lb
}

// WriteBoolean writes a BER-encoded boolean. TRUE is encoded as 0xFF.
func (e *BEREncoder) WriteBoolean(v bool) error {
	e.writeIdentifier(ClassUniversal, TypePrimitive, TagBoolean)
	e.buf = append(e.buf, 1)
	if v {
		e.buf = append(e.buf, 0xFF)
	} else {
		e.buf = append(e.buf, 0x00)
	}
	return nil
}

// WriteInteger writes a BER-encoded integer in minimal two's complement form.
func (e *BEREncoder) WriteInteger(v int64) error {
	return e.writePrimitive(TagInteger, encodeInteger(v))
}

// WriteEnumerated writes a BER-encoded enumerated value.
func (e *BEREncoder) WriteEnumerated(v int64) error {
	return e.writePrimitive(TagEnumerated, encodeInteger(v))
}

// WriteOctetString writes a BER-encoded octet string.
func (e *BEREncoder) WriteOctetString(v []byte) error {
	return e.writePrimitive(TagOctetString, v)
}

// WriteNull writes a BER-encoded null value.
func (e *BEREncoder) WriteNull() error {
	return e.writePrimitive(TagNull, nil)
}

func (e *BEREncoder) writePrimitive(tag int, content []byte) error {
	e.writeIdentifier(ClassUniversal, TypePrimitive, tag)
	if err := e.WriteLength(len(content)); err != nil {
		return err
	}
	e.buf = append(e.buf, content...)
	return nil
}

// encodeInteger encodes v using the fewest octets that preserve its sign.
func encodeInteger(v int64) []byte {
	n := 1
	for i := v; i > 127 || i < -128; i >>= 8 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// WriteRaw writes pre-encoded bytes directly to the buffer.
func (e *BEREncoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// WriteTaggedValue writes a context-specific element with the given contents.
func (e *BEREncoder) WriteTaggedValue(tagNumber int, constructed bool, value []byte) error {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	if err := e.WriteTag(ClassContextSpecific, flag, tagNumber); err != nil {
		return err
	}
	if err := e.WriteLength(len(value)); err != nil {
		return err
	}
	e.buf = append(e.buf, value...)
	return nil
}

// BeginSequence opens a SEQUENCE and returns the position to pass to EndSequence.
func (e *BEREncoder) BeginSequence() int {
	return e.begin(ClassUniversal, TypeConstructed, TagSequence)
}

// EndSequence closes a SEQUENCE opened with BeginSequence.
func (e *BEREncoder) EndSequence(pos int) error {
	return e.end(pos)
}

// BeginSet opens a SET and returns the position to pass to EndSet.
func (e *BEREncoder) BeginSet() int {
	return e.begin(ClassUniversal, TypeConstructed, TagSet)
}

// EndSet closes a SET opened with BeginSet.
func (e *BEREncoder) EndSet(pos int) error {
	return e.end(pos)
}

// WriteContextTag opens a context-specific element whose contents follow.
func (e *BEREncoder) WriteContextTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.begin(ClassContextSpecific, flag, number)
}

// EndContextTag closes an element opened with WriteContextTag.
func (e *BEREncoder) EndContextTag(pos int) error {
	return e.end(pos)
}

// WriteApplicationTag opens an application element (an LDAP protocolOp).
func (e *BEREncoder) WriteApplicationTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.begin(ClassApplication, flag, number)
}

// EndApplicationTag closes an element opened with WriteApplicationTag.
func (e *BEREncoder) EndApplicationTag(pos int) error {
	return e.end(pos)
}

// begin writes the identifier and a one-octet length placeholder.
// The returned position is the index of the placeholder.
func (e *BEREncoder) begin(class, constructed, number int) int {
	e.writeIdentifier(class, constructed, number)
	e.buf = append(e.buf, 0)
	return len(e.buf) - 1
}

// end patches the placeholder at pos with the length of everything written
// after it, shifting the contents when the long form is needed.
func (e *BEREncoder) end(pos int) error {
	if pos < 0 || pos >= len(e.buf) {
		return ErrInvalidPosition
	}
	length := len(e.buf) - pos - 1
	if length <= MaxShortFormLength {
		e.buf[pos] = byte(length)
		return nil
	}

	lb := lengthOctets(length)
	if len(lb) > 127 {
		return ErrLengthOverflow
	}
	e.buf[pos] = byte(LengthLongFormBit | len(lb))
	e.buf = append(e.buf, lb...)
	copy(e.buf[pos+1+len(lb):], e.buf[pos+1:len(e.buf)-len(lb)])
	copy(e.buf[pos+1:], lb)
	return nil
}
