package ber

// Tag class constants (bits 7-8 of the identifier octet)
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xC0
)

// Primitive/constructed flag (bit 6 of the identifier octet)
const (
	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tag numbers used by LDAP
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagNull        = 0x05
	TagEnumerated  = 0x0A
	TagSequence    = 0x10
	TagSet         = 0x11
)

// Length encoding constants
const (
	// LengthLongFormBit marks a long form length octet.
	LengthLongFormBit = 0x80
	// MaxShortFormLength is the largest length that fits the short form.
	MaxShortFormLength = 127
)
