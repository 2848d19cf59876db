package ber

import (
	"io"
)

// ReadPacket reads one complete element (identifier, length and contents)
// from r. Elements longer than limit bytes are rejected with
// ErrPacketTooLarge; a limit of zero disables the check.
func ReadPacket(r io.Reader, limit int) ([]byte, error) {
	head := make([]byte, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if head[0]&0x1F == 0x1F {
		return nil, NewDecodeError(0, "long form tag not expected at packet start", ErrInvalidLength)
	}

	length := int(head[1])
	if head[1]&LengthLongFormBit != 0 {
		numBytes := int(head[1] & 0x7F)
		if numBytes == 0 {
			return nil, NewDecodeError(1, "indefinite length encoding", ErrIndefiniteLength)
		}
		if numBytes > 4 {
			return nil, NewDecodeError(1, "length value overflow", ErrInvalidLength)
		}
		lb := make([]byte, numBytes)
		if _, err := io.ReadFull(r, lb); err != nil {
			return nil, err
		}
		head = append(head, lb...)
		length = 0
		for _, b := range lb {
			length = length<<8 | int(b)
		}
	}

	if limit > 0 && length > limit {
		return nil, ErrPacketTooLarge
	}

	packet := make([]byte, len(head)+length)
	copy(packet, head)
	if _, err := io.ReadFull(r, packet[len(head):]); err != nil {
		return nil, err
	}
	return packet, nil
}
