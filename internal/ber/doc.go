// Package ber implements the subset of ASN.1 BER (ITU-T X.690) that the
// LDAP client needs to build requests and read responses.
//
// BER is the wire format of every LDAP message. The package offers an
// append-only encoder and a cursor-style decoder over a byte slice, plus
// ReadPacket for pulling one complete element off a stream.
//
// # Encoding
//
// Primitive values are written directly:
//
//	enc := ber.NewBEREncoder(256)
//	enc.WriteInteger(42)
//	enc.WriteOctetString([]byte("cn"))
//
// Constructed values are opened with a Begin/Write call that returns a
// position, and closed with the matching End call once the contents have
// been written. The length is patched in place when the element is closed:
//
//	pos := enc.BeginSequence()
//	enc.WriteInteger(500)
//	enc.WriteOctetString(cookie)
//	if err := enc.EndSequence(pos); err != nil {
//	    // handle error
//	}
//
// # Decoding
//
//	dec := ber.NewBERDecoder(data)
//	body, err := dec.ReadSequenceContents()
//	if err != nil {
//	    // handle error
//	}
//	size, err := body.ReadInteger()
//
// # References
//
//   - ITU-T X.690: ASN.1 encoding rules
//   - RFC 4511 Section 5.1: LDAP's restrictions on BER
package ber
