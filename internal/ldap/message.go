package ldap

import (
	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// ParseLDAPMessage parses a BER-encoded LDAP message envelope. The protocol
// operation is returned raw; use the operation-specific parsers on its Data.
func ParseLDAPMessage(data []byte) (*LDAPMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	outer := ber.NewBERDecoder(data)
	decoder, err := outer.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(0, "expected SEQUENCE for LDAPMessage", err)
	}

	msgID, err := decoder.ReadInteger()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read messageID", err)
	}
	if msgID < MinMessageID || msgID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}

	opStart := decoder.Offset()
	class, _, tagNum, err := decoder.PeekTag()
	if err != nil {
		return nil, NewParseError(opStart, "failed to read protocolOp tag", err)
	}
	if class != ber.ClassApplication {
		return nil, NewParseError(opStart, "protocolOp must have APPLICATION tag class", ErrInvalidOperation)
	}
	opLength, err := decoder.ExpectApplicationTag(tagNum)
	if err != nil {
		return nil, NewParseError(opStart, "failed to read protocolOp", err)
	}

	opData, err := decoder.ReadRaw(opLength)
	if err != nil {
		return nil, NewParseError(opStart, "truncated protocolOp data", err)
	}

	msg := &LDAPMessage{
		MessageID: int(msgID),
		Operation: &RawOperation{Tag: tagNum, Data: opData},
	}

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagControls) {
		controls, err := parseControls(decoder)
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to parse controls", err)
		}
		msg.Controls = controls
	}

	return msg, nil
}

// parseControls parses the Controls field.
// Controls ::= SEQUENCE OF control Control
//
// Some clients omit the SEQUENCE OF wrapper and place Control sequences
// directly inside [0]; both forms are accepted.
func parseControls(decoder *ber.BERDecoder) ([]Control, error) {
	body, err := decoder.ReadContextTagContents(ContextTagControls)
	if err != nil {
		return nil, err
	}
	if body.Remaining() == 0 {
		return nil, nil
	}

	list := body
	if !startsWithControl(body) {
		if list, err = body.ReadSequenceContents(); err != nil {
			return nil, err
		}
	}

	var controls []Control
	for list.Remaining() > 0 {
		ctrl, err := parseControl(list)
		if err != nil {
			return nil, err
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

// startsWithControl reports whether the next SEQUENCE is itself a Control,
// which is the case when its first element is the OID OCTET STRING.
func startsWithControl(d *ber.BERDecoder) bool {
	saved := d.Offset()
	defer d.SetOffset(saved)

	inner, err := d.ReadSequenceContents()
	if err != nil || inner.Remaining() == 0 {
		return false
	}
	class, _, tag, err := inner.PeekTag()
	return err == nil && class == ber.ClassUniversal && tag == ber.TagOctetString
}

// parseControl parses a single Control.
func parseControl(decoder *ber.BERDecoder) (Control, error) {
	ctrl := Control{}

	seq, err := decoder.ReadSequenceContents()
	if err != nil {
		return ctrl, err
	}

	oid, err := seq.ReadOctetString()
	if err != nil {
		return ctrl, NewParseError(seq.Offset(), "failed to read control OID", err)
	}
	ctrl.OID = string(oid)

	if seq.Remaining() > 0 {
		class, _, tag, err := seq.PeekTag()
		if err == nil && class == ber.ClassUniversal && tag == ber.TagBoolean {
			if ctrl.Criticality, err = seq.ReadBoolean(); err != nil {
				return ctrl, NewParseError(seq.Offset(), "failed to read control criticality", err)
			}
		}
	}

	if seq.Remaining() > 0 {
		value, err := seq.ReadOctetString()
		if err != nil {
			return ctrl, NewParseError(seq.Offset(), "failed to read control value", err)
		}
		ctrl.Value = value
	}

	return ctrl, nil
}

// Encode encodes the LDAPMessage to BER format.
func (m *LDAPMessage) Encode() ([]byte, error) {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	if m.Operation == nil {
		return nil, ErrMissingOperation
	}

	encoder := ber.NewBEREncoder(len(m.Operation.Data) + 64)
	seqPos := encoder.BeginSequence()

	if err := encoder.WriteInteger(int64(m.MessageID)); err != nil {
		return nil, err
	}

	appPos := encoder.WriteApplicationTag(m.Operation.Tag, isConstructedOperation(m.Operation.Tag))
	encoder.WriteRaw(m.Operation.Data)
	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}

	if len(m.Controls) > 0 {
		if err := encodeControls(encoder, m.Controls); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndSequence(seqPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// isConstructedOperation returns true if the operation type is constructed
func isConstructedOperation(tag int) bool {
	switch tag {
	case ApplicationUnbindRequest, ApplicationAbandonRequest:
		// NULL and INTEGER respectively
		return false
	default:
		return true
	}
}

// encodeControls encodes the Controls field.
func encodeControls(encoder *ber.BEREncoder, controls []Control) error {
	ctxPos := encoder.WriteContextTag(ContextTagControls, true)
	for _, ctrl := range controls {
		if err := encodeControl(encoder, ctrl); err != nil {
			return err
		}
	}
	return encoder.EndContextTag(ctxPos)
}

// encodeControl encodes a single Control. Criticality is omitted when false
// since that is the default.
func encodeControl(encoder *ber.BEREncoder, ctrl Control) error {
	seqPos := encoder.BeginSequence()

	if err := encoder.WriteOctetString([]byte(ctrl.OID)); err != nil {
		return err
	}
	if ctrl.Criticality {
		if err := encoder.WriteBoolean(true); err != nil {
			return err
		}
	}
	if ctrl.Value != nil {
		if err := encoder.WriteOctetString(ctrl.Value); err != nil {
			return err
		}
	}

	return encoder.EndSequence(seqPos)
}
