package filter

import (
	"github.com/KilimcininKorOglu/dirquery/internal/ber"
)

// Substring and extensible match component tags (RFC 4511 Section 4.5.1).
const (
	substringInitial = 0
	substringAny     = 1
	substringFinal   = 2

	extMatchingRule = 1
	extType         = 2
	extMatchValue   = 3
	extDNAttributes = 4
)

// Encode writes the filter as the BER Filter CHOICE of a SearchRequest.
func (f *Filter) Encode(enc *ber.BEREncoder) error {
	if f == nil {
		return ErrEmptyFilter
	}

	switch f.Type {
	case FilterAnd, FilterOr:
		pos := enc.WriteContextTag(int(f.Type), true)
		for _, child := range f.Children {
			if err := child.Encode(enc); err != nil {
				return err
			}
		}
		return enc.EndContextTag(pos)

	case FilterNot:
		pos := enc.WriteContextTag(int(FilterNot), true)
		if err := f.Child.Encode(enc); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterEquality, FilterGreaterOrEqual, FilterLessOrEqual, FilterApproxMatch:
		pos := enc.WriteContextTag(int(f.Type), true)
		if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		if err := enc.WriteOctetString(f.Value); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterSubstring:
		sf := f.Substring
		if sf == nil {
			return ErrInvalidFilter
		}
		pos := enc.WriteContextTag(int(FilterSubstring), true)
		if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		seq := enc.BeginSequence()
		if len(sf.Initial) > 0 {
			if err := enc.WriteTaggedValue(substringInitial, false, sf.Initial); err != nil {
				return err
			}
		}
		for _, a := range sf.Any {
			if err := enc.WriteTaggedValue(substringAny, false, a); err != nil {
				return err
			}
		}
		if len(sf.Final) > 0 {
			if err := enc.WriteTaggedValue(substringFinal, false, sf.Final); err != nil {
				return err
			}
		}
		if err := enc.EndSequence(seq); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterPresent:
		return enc.WriteTaggedValue(int(FilterPresent), false, []byte(f.Attribute))

	case FilterExtensibleMatch:
		pos := enc.WriteContextTag(int(FilterExtensibleMatch), true)
		if f.MatchingRule != "" {
			if err := enc.WriteTaggedValue(extMatchingRule, false, []byte(f.MatchingRule)); err != nil {
				return err
			}
		}
		if f.Attribute != "" {
			if err := enc.WriteTaggedValue(extType, false, []byte(f.Attribute)); err != nil {
				return err
			}
		}
		if err := enc.WriteTaggedValue(extMatchValue, false, f.Value); err != nil {
			return err
		}
		if f.DNAttributes {
			if err := enc.WriteTaggedValue(extDNAttributes, false, []byte{0xFF}); err != nil {
				return err
			}
		}
		return enc.EndContextTag(pos)
	}

	return ErrInvalidFilter
}

// Decode reads one BER-encoded Filter.
func Decode(dec *ber.BERDecoder) (*Filter, error) {
	tagNum, constructed, data, err := dec.ReadTaggedValue()
	if err != nil {
		return nil, err
	}

	ft := FilterType(tagNum)
	sub := ber.NewBERDecoder(data)

	switch ft {
	case FilterAnd, FilterOr:
		if !constructed {
			return nil, ErrInvalidFilter
		}
		f := &Filter{Type: ft}
		for sub.Remaining() > 0 {
			child, err := Decode(sub)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil

	case FilterNot:
		if !constructed {
			return nil, ErrInvalidFilter
		}
		child, err := Decode(sub)
		if err != nil {
			return nil, err
		}
		return NewNotFilter(child), nil

	case FilterEquality, FilterGreaterOrEqual, FilterLessOrEqual, FilterApproxMatch:
		if !constructed {
			return nil, ErrInvalidFilter
		}
		attr, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		value, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		return &Filter{Type: ft, Attribute: string(attr), Value: value}, nil

	case FilterSubstring:
		if !constructed {
			return nil, ErrInvalidFilter
		}
		attr, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		parts, err := sub.ReadSequenceContents()
		if err != nil {
			return nil, err
		}
		sf := &SubstringFilter{Attribute: string(attr)}
		for parts.Remaining() > 0 {
			num, _, value, err := parts.ReadTaggedValue()
			if err != nil {
				return nil, err
			}
			switch num {
			case substringInitial:
				sf.Initial = value
			case substringAny:
				sf.Any = append(sf.Any, value)
			case substringFinal:
				sf.Final = value
			default:
				return nil, ErrInvalidFilter
			}
		}
		return NewSubstringFilter(sf), nil

	case FilterPresent:
		if constructed {
			return nil, ErrInvalidFilter
		}
		return NewPresentFilter(string(data)), nil

	case FilterExtensibleMatch:
		if !constructed {
			return nil, ErrInvalidFilter
		}
		f := &Filter{Type: FilterExtensibleMatch}
		for sub.Remaining() > 0 {
			num, _, value, err := sub.ReadTaggedValue()
			if err != nil {
				return nil, err
			}
			switch num {
			case extMatchingRule:
				f.MatchingRule = string(value)
			case extType:
				f.Attribute = string(value)
			case extMatchValue:
				f.Value = value
			case extDNAttributes:
				f.DNAttributes = len(value) > 0 && value[0] != 0
			}
		}
		return f, nil
	}

	return nil, ErrInvalidFilter
}
