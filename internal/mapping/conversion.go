package mapping

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
)

// Time layouts understood by the format tag option besides Go layouts.
const (
	// GeneralizedTime is the default layout (RFC 4517 Section 3.3.13).
	// Fractional seconds are accepted when parsing.
	GeneralizedTime = "20060102150405Z0700"
	// LayoutFileTime stores 100-nanosecond intervals since 1601-01-01 UTC.
	LayoutFileTime = "filetime"
	// LayoutUnix stores seconds since the Unix epoch.
	LayoutUnix = "unix"
	// LayoutText selects the textual form of a GUID instead of the
	// 16-byte binary one.
	LayoutText = "text"
)

// fileTimeEpochOffset is 1970-01-01 expressed in FILETIME units.
const fileTimeEpochOffset = 116444736000000000

var (
	timeType            = reflect.TypeOf(time.Time{})
	uuidType            = reflect.TypeOf(uuid.UUID{})
	attributesType      = reflect.TypeOf((*directory.Attributes)(nil))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// isRawBytes reports whether t is a byte slice stored as is, which
// excludes byte slices with a text form such as net.IP.
func isRawBytes(t reflect.Type) bool {
	return isBytes(t) && !t.Implements(textMarshalerType) && !reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

// coercible reports whether built-in coercion can handle t.
func coercible(t reflect.Type) bool {
	if t == timeType || t == uuidType || isBytes(t) {
		return true
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Pointer:
		return coercible(t.Elem())
	case reflect.Slice:
		e := t.Elem()
		if e.Kind() == reflect.Slice && !isBytes(e) {
			return false
		}
		return coercible(e)
	}
	return false
}

// decode converts raw directory values to t. Absent or empty input yields
// the zero value. Scalar types take the first value.
func decode(t reflect.Type, layout string, raw [][]byte) (reflect.Value, error) {
	if len(raw) == 0 {
		return reflect.Zero(t), nil
	}
	if t.Kind() == reflect.Pointer && !isBytes(t.Elem()) && t.Elem().Kind() == reflect.Slice {
		v, err := decode(t.Elem(), layout, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, nil
	}
	if t.Kind() == reflect.Slice && !isBytes(t) {
		out := reflect.MakeSlice(t, len(raw), len(raw))
		for i, b := range raw {
			v, err := decodeOne(t.Elem(), layout, b)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(v)
		}
		return out, nil
	}
	return decodeOne(t, layout, raw[0])
}

func decodeOne(t reflect.Type, layout string, b []byte) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.Pointer:
		v, err := decodeOne(t.Elem(), layout, b)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, nil
	case t == timeType:
		tm, err := parseTime(layout, string(b))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(tm), nil
	case t == uuidType:
		u, err := parseGUID(b)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(u), nil
	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText(b); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	case isBytes(t):
		return reflect.ValueOf(append([]byte(nil), b...)).Convert(t), nil
	}

	s := string(b)
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		bv, err := parseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(bv)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, ErrUnsupportedType
	}
	return v, nil
}

// encode is the mirror of decode. A nil result means "not set".
func encode(t reflect.Type, layout string, v reflect.Value) ([][]byte, error) {
	switch {
	case t.Kind() == reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return encode(t.Elem(), layout, v.Elem())
	case isRawBytes(t):
		if v.Len() == 0 {
			return nil, nil
		}
		return [][]byte{append([]byte(nil), v.Bytes()...)}, nil
	case t.Kind() == reflect.Slice && !isBytes(t):
		var out [][]byte
		for i := 0; i < v.Len(); i++ {
			b, err := encodeOne(t.Elem(), layout, v.Index(i))
			if err != nil {
				return nil, err
			}
			if b != nil {
				out = append(out, b)
			}
		}
		return out, nil
	}
	b, err := encodeOne(t, layout, v)
	if err != nil || b == nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

func encodeOne(t reflect.Type, layout string, v reflect.Value) ([]byte, error) {
	switch {
	case t.Kind() == reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return encodeOne(t.Elem(), layout, v.Elem())
	case t == timeType:
		return []byte(formatTime(layout, v.Interface().(time.Time))), nil
	case t == uuidType:
		return formatGUID(layout, v.Interface().(uuid.UUID)), nil
	case t.Implements(textMarshalerType):
		return v.Interface().(encoding.TextMarshaler).MarshalText()
	case reflect.PointerTo(t).Implements(textMarshalerType):
		p := reflect.New(t)
		p.Elem().Set(v)
		return p.Interface().(encoding.TextMarshaler).MarshalText()
	case isBytes(t):
		return append([]byte(nil), v.Bytes()...), nil
	}

	switch t.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return nil, nil
		}
		return []byte(v.String()), nil
	case reflect.Bool:
		if v.Bool() {
			return []byte("TRUE"), nil
		}
		return []byte("FALSE"), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(nil, v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.AppendUint(nil, v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.AppendFloat(nil, v.Float(), 'g', -1, t.Bits()), nil
	}
	return nil, ErrUnsupportedType
}

// parseBool accepts the LDAP Boolean syntax (RFC 4517 Section 3.3.3) and,
// leniently, the forms strconv understands.
func parseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "TRUE"):
		return true, nil
	case strings.EqualFold(s, "FALSE"):
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseTime(layout, s string) (time.Time, error) {
	switch layout {
	case "", GeneralizedTime:
		return time.Parse(GeneralizedTime, s)
	case LayoutFileTime:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		// 0 and MaxInt64 both mean "never" in Active Directory.
		if n == 0 || n == math.MaxInt64 {
			return time.Time{}, nil
		}
		n -= fileTimeEpochOffset
		return time.Unix(n/1e7, (n%1e7)*100).UTC(), nil
	case LayoutUnix:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Parse(layout, s)
}

func formatTime(layout string, t time.Time) string {
	switch layout {
	case "", GeneralizedTime:
		return t.UTC().Format(GeneralizedTime)
	case LayoutFileTime:
		if t.IsZero() {
			return "0"
		}
		return strconv.FormatInt(t.Unix()*1e7+int64(t.Nanosecond()/100)+fileTimeEpochOffset, 10)
	case LayoutUnix:
		return strconv.FormatInt(t.Unix(), 10)
	}
	return t.Format(layout)
}

// parseGUID accepts the 16-byte binary form stored by Active Directory,
// whose first three groups are little-endian, and every textual form
// uuid.ParseBytes understands.
func parseGUID(b []byte) (uuid.UUID, error) {
	if len(b) == 16 {
		var u uuid.UUID
		copy(u[:], b)
		swapGUID(&u)
		return u, nil
	}
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid GUID: %w", err)
	}
	return u, nil
}

func formatGUID(layout string, u uuid.UUID) []byte {
	if layout == LayoutText {
		return []byte(u.String())
	}
	swapGUID(&u)
	return u[:]
}

func swapGUID(u *uuid.UUID) {
	u[0], u[1], u[2], u[3] = u[3], u[2], u[1], u[0]
	u[4], u[5] = u[5], u[4]
	u[6], u[7] = u[7], u[6]
}
