package mapping

import (
	"fmt"
	"reflect"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
)

// DistinguishedNameAttribute is the attribute name given to DN properties.
const DistinguishedNameAttribute = "distinguishedName"

// Conversion is one row of an explicit conversion table. A row built with
// NotSet stands for an absent or empty directory value.
type Conversion struct {
	Directory string
	Value     any
	NotSet    bool
}

// Convert maps the directory string directory to value.
func Convert(directory string, value any) Conversion {
	return Conversion{Directory: directory, Value: value}
}

// NotSet maps an absent or empty directory value to value.
func NotSet(value any) Conversion {
	return Conversion{Value: value, NotSet: true}
}

// PropertyDescriptor declares how one struct field maps to an attribute. It
// is what the ldap struct tag parses into and what WithProperty accepts.
type PropertyDescriptor struct {
	// Property is the Go field name.
	Property string
	// Attribute is the directory attribute name. Defaults to the field
	// name, or to distinguishedName for DN properties.
	Attribute         string
	DistinguishedName bool
	CatchAll          bool
	ReadOnly          bool
	StoreGenerated    bool
	// Format is the time layout, or LayoutText for textual GUIDs.
	Format string
	// FromDirectory and ToDirectory are the explicit conversion tables.
	FromDirectory []Conversion
	ToDirectory   []Conversion
}

// PropertyMapping is the conversion rule and metadata of one mapped field.
type PropertyMapping struct {
	name      string
	attribute string
	folded    string
	index     []int
	typ       reflect.Type
	position  int

	dn        bool
	catchAll  bool
	readOnly  bool
	generated bool
	format    string

	fromDir   map[string]reflect.Value
	notSet    reflect.Value
	hasNotSet bool
	toDir     map[any][][]byte
}

func newPropertyMapping(owner reflect.Type, field reflect.StructField, d PropertyDescriptor) (*PropertyMapping, error) {
	p := &PropertyMapping{
		name:      field.Name,
		attribute: d.Attribute,
		index:     field.Index,
		typ:       field.Type,
		dn:        d.DistinguishedName,
		catchAll:  d.CatchAll,
		readOnly:  d.ReadOnly,
		generated: d.StoreGenerated,
		format:    d.Format,
	}
	fail := func(err error) (*PropertyMapping, error) {
		return nil, definitionError(owner, field.Name, err)
	}

	switch {
	case p.dn && p.catchAll:
		return fail(ErrInvalidTag)
	case p.dn:
		if p.typ.Kind() != reflect.String {
			return fail(fmt.Errorf("%w: distinguished name must be a string, got %v", ErrUnsupportedType, p.typ))
		}
		if p.attribute == "" {
			p.attribute = DistinguishedNameAttribute
		}
	case p.catchAll:
		if p.typ != attributesType {
			return fail(fmt.Errorf("%w: catch-all must be %v, got %v", ErrUnsupportedType, attributesType, p.typ))
		}
		p.attribute = ""
	default:
		if p.attribute == "" {
			p.attribute = field.Name
		}
		if !coercible(p.typ) && len(d.FromDirectory) == 0 {
			return fail(fmt.Errorf("%w: %v", ErrUnsupportedType, p.typ))
		}
	}
	p.folded = directory.Fold(p.attribute)

	if err := p.buildTables(d); err != nil {
		return fail(err)
	}
	return p, nil
}

func (p *PropertyMapping) buildTables(d PropertyDescriptor) error {
	if len(d.FromDirectory) > 0 {
		p.fromDir = make(map[string]reflect.Value, len(d.FromDirectory))
	}
	for _, c := range d.FromDirectory {
		v, err := p.tableValue(c.Value)
		if err != nil {
			return err
		}
		if c.NotSet {
			if p.hasNotSet {
				return fmt.Errorf("%w: not-set entry given twice", ErrDuplicateConversion)
			}
			p.notSet, p.hasNotSet = v, true
			continue
		}
		if _, dup := p.fromDir[c.Directory]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateConversion, c.Directory)
		}
		p.fromDir[c.Directory] = v
	}

	if len(d.ToDirectory) == 0 {
		return nil
	}
	if !p.typ.Comparable() {
		return fmt.Errorf("%w: %v is not comparable", ErrInvalidConversion, p.typ)
	}
	p.toDir = make(map[any][][]byte, len(d.ToDirectory))
	for _, c := range d.ToDirectory {
		v, err := p.tableValue(c.Value)
		if err != nil {
			return err
		}
		key := v.Interface()
		if _, dup := p.toDir[key]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateConversion, key)
		}
		if c.NotSet {
			p.toDir[key] = nil
		} else {
			p.toDir[key] = [][]byte{[]byte(c.Directory)}
		}
	}
	return nil
}

// tableValue converts a table value to the property type once, so lookups
// compare values of a single concrete type.
func (p *PropertyMapping) tableValue(value any) (reflect.Value, error) {
	if value == nil {
		if isNillable(p.typ) {
			return reflect.Zero(p.typ), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %v", ErrInvalidConversion, p.typ)
	}
	v := reflect.ValueOf(value)
	if !v.Type().ConvertibleTo(p.typ) {
		return reflect.Value{}, fmt.Errorf("%w: %v is not %v", ErrInvalidConversion, v.Type(), p.typ)
	}
	return v.Convert(p.typ), nil
}

// PropertyName returns the Go field name.
func (p *PropertyMapping) PropertyName() string { return p.name }

// AttributeName returns the directory attribute name as declared.
func (p *PropertyMapping) AttributeName() string { return p.attribute }

// Type returns the field type.
func (p *PropertyMapping) Type() reflect.Type { return p.typ }

// Position returns the index of the property in mapping order.
func (p *PropertyMapping) Position() int { return p.position }

// IsDistinguishedName reports whether the property receives the entry DN.
func (p *PropertyMapping) IsDistinguishedName() bool { return p.dn }

// IsCatchAll reports whether the property receives every attribute.
func (p *PropertyMapping) IsCatchAll() bool { return p.catchAll }

// IsReadOnly reports whether the property is excluded from change tracking.
func (p *PropertyMapping) IsReadOnly() bool { return p.readOnly }

// IsStoreGenerated reports whether the directory assigns the value.
func (p *PropertyMapping) IsStoreGenerated() bool { return p.generated }

// DateFormat returns the configured layout, or "" for the default.
func (p *PropertyMapping) DateFormat() string { return p.format }

// HasNotSetConversion reports whether the directory-to-instance table has
// an entry for absent values.
func (p *PropertyMapping) HasNotSetConversion() bool { return p.hasNotSet }

// DefaultValue returns the zero value of the field type.
func (p *PropertyMapping) DefaultValue() any {
	return reflect.Zero(p.typ).Interface()
}

// ToInstanceValue converts raw directory values. A nil raw means the
// attribute is absent. The explicit table is consulted first with an exact
// match on the first value; built-in coercion handles everything else.
func (p *PropertyMapping) ToInstanceValue(raw [][]byte) (any, error) {
	v, err := p.instanceValue(raw)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func (p *PropertyMapping) instanceValue(raw [][]byte) (reflect.Value, error) {
	empty := len(raw) == 0 || (len(raw) == 1 && len(raw[0]) == 0)
	switch {
	case empty && p.hasNotSet:
		return p.notSet, nil
	case !empty && p.fromDir != nil:
		if v, ok := p.fromDir[string(raw[0])]; ok {
			return v, nil
		}
	}

	v, err := decode(p.typ, p.format, raw)
	if err != nil {
		ce := &ConversionError{Property: p.name, Attribute: p.attribute, Type: p.typ, Err: err}
		if len(raw) > 0 {
			ce.Value = string(raw[0])
		}
		return reflect.Value{}, ce
	}
	return v, nil
}

// ToDirectoryValue converts an instance value for the write path. A nil
// result means the attribute is not set.
func (p *PropertyMapping) ToDirectoryValue(value any) ([][]byte, error) {
	v := reflect.ValueOf(value)
	switch {
	case !v.IsValid():
		if !isNillable(p.typ) {
			return nil, p.writeError(value, ErrInvalidConversion)
		}
		v = reflect.Zero(p.typ)
	case v.Type() != p.typ:
		if !v.Type().ConvertibleTo(p.typ) {
			return nil, p.writeError(value, ErrInvalidConversion)
		}
		v = v.Convert(p.typ)
	}

	if p.toDir != nil {
		if out, ok := p.toDir[v.Interface()]; ok {
			return out, nil
		}
	}
	out, err := encode(p.typ, p.format, v)
	if err != nil {
		return nil, p.writeError(value, err)
	}
	return out, nil
}

func (p *PropertyMapping) writeError(value any, err error) error {
	return &ConversionError{
		Property:  p.name,
		Attribute: p.attribute,
		Type:      p.typ,
		Value:     fmt.Sprint(value),
		Err:       err,
	}
}

// Get returns the field value of instance, a pointer to the mapped struct.
func (p *PropertyMapping) Get(instance any) any {
	s := reflect.ValueOf(instance).Elem()
	f, err := s.FieldByIndexErr(p.index)
	if err != nil {
		return p.DefaultValue()
	}
	return f.Interface()
}

// Set stores value in the field of instance, a pointer to the mapped
// struct. Embedded struct pointers on the way are allocated. A nil value
// stores the zero value.
func (p *PropertyMapping) Set(instance any, value any) {
	p.set(reflect.ValueOf(instance).Elem(), value)
}

func (p *PropertyMapping) set(s reflect.Value, value any) {
	f := fieldByIndexAlloc(s, p.index)
	if value == nil {
		f.Set(reflect.Zero(p.typ))
		return
	}
	f.Set(reflect.ValueOf(value))
}

func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}
