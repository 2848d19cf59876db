package ber

// BERDecoder decodes ASN.1 values using BER (Basic Encoding Rules).
type BERDecoder struct {
	data   []byte
	offset int
}

// NewBERDecoder creates a new BER decoder for the given data.
func NewBERDecoder(data []byte) *BERDecoder {
	return &BERDecoder{data: data}
}

// Offset returns the current read position in the data.
func (d *BERDecoder) Offset() int {
	return d.offset
}

// Remaining returns the number of bytes remaining to be read.
func (d *BERDecoder) Remaining() int {
	return len(d.data) - d.offset
}

// SetOffset sets the current read position.
func (d *BERDecoder) SetOffset(offset int) {
	d.offset = offset
}

// ReadTag reads an identifier and returns its class, constructed flag and number.
func (d *BERDecoder) ReadTag() (class, constructed, number int, err error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, 0, 0, NewDecodeError(start, "cannot read tag", ErrUnexpectedEOF)
	}

	first := d.data[d.offset]
	d.offset++

	class = int(first & 0xC0)
	constructed = int(first & 0x20)
	number = int(first & 0x1F)
	if number != 0x1F {
		return class, constructed, number, nil
	}

	number = 0
	for {
		if d.offset >= len(d.data) {
			return 0, 0, 0, NewDecodeError(start, "cannot read long form tag number", ErrUnexpectedEOF)
		}
		if number > 1<<24 {
			return 0, 0, 0, NewDecodeError(start, "tag number overflow", nil)
		}
		b := d.data[d.offset]
		d.offset++
		number = number<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			return class, constructed, number, nil
		}
	}
}

// ReadLength reads a definite length.
func (d *BERDecoder) ReadLength() (int, error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, NewDecodeError(start, "cannot read length", ErrUnexpectedEOF)
	}

	first := d.data[d.offset]
	d.offset++
	if first&LengthLongFormBit == 0 {
		return int(first), nil
	}

	numBytes := int(first & 0x7F)
	if numBytes == 0 {
		return 0, NewDecodeError(start, "indefinite length encoding", ErrIndefiniteLength)
	}
	if d.offset+numBytes > len(d.data) {
		return 0, NewDecodeError(start, "truncated length encoding", ErrUnexpectedEOF)
	}

	length := 0
	for i := 0; i < numBytes; i++ {
		if length > 1<<24 {
			return 0, NewDecodeError(start, "length value overflow", ErrInvalidLength)
		}
		length = length<<8 | int(d.data[d.offset])
		d.offset++
	}
	return length, nil
}

// header reads an identifier and length, checks the identifier against the
// expectation and that the contents are available. A negative expected
// number accepts any number; a negative constructed flag accepts either form.
func (d *BERDecoder) header(wantClass, wantConstructed, wantNumber int) (constructed, number, length int, err error) {
	start := d.offset
	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return 0, 0, 0, err
	}
	if class != wantClass ||
		(wantNumber >= 0 && number != wantNumber) ||
		(wantConstructed >= 0 && constructed != wantConstructed) {
		return 0, 0, 0, &TagMismatchError{
			Offset:            start,
			ExpectedClass:     wantClass,
			ExpectedNumber:    wantNumber,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}

	length, err = d.ReadLength()
	if err != nil {
		return 0, 0, 0, err
	}
	if d.offset+length > len(d.data) {
		return 0, 0, 0, NewDecodeError(start, "truncated element contents", ErrUnexpectedEOF)
	}
	return constructed, number, length, nil
}

// contents returns the next length bytes and advances past them.
func (d *BERDecoder) contents(length int) []byte {
	value := d.data[d.offset : d.offset+length]
	d.offset += length
	return value
}

// ReadBoolean reads a BER-encoded boolean value.
func (d *BERDecoder) ReadBoolean() (bool, error) {
	start := d.offset
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, TagBoolean)
	if err != nil {
		return false, err
	}
	if length != 1 {
		return false, NewDecodeError(start, "boolean must have length 1", ErrInvalidBoolean)
	}
	return d.contents(1)[0] != 0x00, nil
}

// ReadInteger reads a BER-encoded integer value.
func (d *BERDecoder) ReadInteger() (int64, error) {
	return d.readIntegral(TagInteger)
}

// ReadEnumerated reads a BER-encoded enumerated value.
func (d *BERDecoder) ReadEnumerated() (int64, error) {
	return d.readIntegral(TagEnumerated)
}

func (d *BERDecoder) readIntegral(tag int) (int64, error) {
	start := d.offset
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, tag)
	if err != nil {
		return 0, err
	}
	if length == 0 || length > 8 {
		return 0, NewDecodeError(start, "integer must have 1 to 8 octets", ErrInvalidInteger)
	}
	return decodeInteger(d.contents(length)), nil
}

// decodeInteger decodes a two's complement big-endian integer.
func decodeInteger(b []byte) int64 {
	var result int64
	if b[0]&0x80 != 0 {
		result = -1
	}
	for _, octet := range b {
		result = result<<8 | int64(octet)
	}
	return result
}

// ReadOctetString reads a primitive BER-encoded octet string.
// The returned slice is a copy and may be retained by the caller.
func (d *BERDecoder) ReadOctetString() ([]byte, error) {
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, TagOctetString)
	if err != nil {
		return nil, err
	}
	value := make([]byte, length)
	copy(value, d.contents(length))
	return value, nil
}

// PeekTag reads a tag without advancing the offset.
func (d *BERDecoder) PeekTag() (class, constructed, number int, err error) {
	saved := d.offset
	class, constructed, number, err = d.ReadTag()
	d.offset = saved
	return
}

// Skip skips the current element.
func (d *BERDecoder) Skip() error {
	start := d.offset
	if _, _, _, err := d.ReadTag(); err != nil {
		return err
	}
	length, err := d.ReadLength()
	if err != nil {
		return err
	}
	if d.offset+length > len(d.data) {
		return NewDecodeError(start, "truncated value", ErrUnexpectedEOF)
	}
	d.offset += length
	return nil
}

// ReadTaggedValue reads any context-specific element and returns its number,
// form and a copy of its contents.
func (d *BERDecoder) ReadTaggedValue() (tagNumber int, constructed bool, value []byte, err error) {
	flag, number, length, err := d.header(ClassContextSpecific, -1, -1)
	if err != nil {
		return 0, false, nil, err
	}
	value = make([]byte, length)
	copy(value, d.contents(length))
	return number, flag == TypeConstructed, value, nil
}

// ExpectSequence reads a SEQUENCE header and returns the content length.
func (d *BERDecoder) ExpectSequence() (int, error) {
	_, _, length, err := d.header(ClassUniversal, TypeConstructed, TagSequence)
	return length, err
}

// ExpectSet reads a SET header and returns the content length.
func (d *BERDecoder) ExpectSet() (int, error) {
	_, _, length, err := d.header(ClassUniversal, TypeConstructed, TagSet)
	return length, err
}

// ExpectContextTag reads a context-specific header with the given number.
func (d *BERDecoder) ExpectContextTag(num int) (int, error) {
	_, _, length, err := d.header(ClassContextSpecific, -1, num)
	return length, err
}

// ExpectApplicationTag reads an application header with the given number.
func (d *BERDecoder) ExpectApplicationTag(num int) (int, error) {
	_, _, length, err := d.header(ClassApplication, -1, num)
	return length, err
}

// IsContextTag reports whether the next element is context-specific with the given number.
func (d *BERDecoder) IsContextTag(num int) bool {
	class, _, number, err := d.PeekTag()
	return err == nil && class == ClassContextSpecific && number == num
}

// IsApplicationTag reports whether the next element is an application element with the given number.
func (d *BERDecoder) IsApplicationTag(num int) bool {
	class, _, number, err := d.PeekTag()
	return err == nil && class == ClassApplication && number == num
}

// ReadSequenceContents consumes a SEQUENCE and returns a decoder over its contents.
func (d *BERDecoder) ReadSequenceContents() (*BERDecoder, error) {
	length, err := d.ExpectSequence()
	if err != nil {
		return nil, err
	}
	return NewBERDecoder(d.contents(length)), nil
}

// ReadSetContents consumes a SET and returns a decoder over its contents.
func (d *BERDecoder) ReadSetContents() (*BERDecoder, error) {
	length, err := d.ExpectSet()
	if err != nil {
		return nil, err
	}
	return NewBERDecoder(d.contents(length)), nil
}

// ReadContextTagContents consumes a context-specific element and returns a decoder over its contents.
func (d *BERDecoder) ReadContextTagContents(num int) (*BERDecoder, error) {
	length, err := d.ExpectContextTag(num)
	if err != nil {
		return nil, err
	}
	return NewBERDecoder(d.contents(length)), nil
}

// ReadApplicationTagContents consumes an application element and returns a decoder over its contents.
func (d *BERDecoder) ReadApplicationTagContents(num int) (*BERDecoder, error) {
	length, err := d.ExpectApplicationTag(num)
	if err != nil {
		return nil, err
	}
	return NewBERDecoder(d.contents(length)), nil
}

// ReadRaw returns a copy of the next n bytes and advances past them.
func (d *BERDecoder) ReadRaw(n int) ([]byte, error) {
	if n < 0 || d.offset+n > len(d.data) {
		return nil, NewDecodeError(d.offset, "cannot read raw bytes", ErrUnexpectedEOF)
	}
	out := make([]byte, n)
	copy(out, d.contents(n))
	return out, nil
}
