package mapping

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/filter"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type subtype struct {
	discriminators []string
	mapping        *ObjectMapping
}

// ObjectMapping is the registered schema of one struct type.
type ObjectMapping struct {
	typ         reflect.Type
	properties  []*PropertyMapping
	byName      map[string]*PropertyMapping
	byAttribute map[string]*PropertyMapping
	dn          *PropertyMapping
	catchAll    *PropertyMapping
	subtypes    []subtype

	constructor reflect.Value
	ctorError   bool

	namingContext  string
	objectClasses  []string
	objectCategory string
}

func buildMapping(t reflect.Type, cfg *objectConfig) (*ObjectMapping, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, definitionError(t, "", ErrNotStruct)
	}

	om := &ObjectMapping{
		typ:            t,
		byName:         make(map[string]*PropertyMapping),
		byAttribute:    make(map[string]*PropertyMapping),
		namingContext:  cfg.namingContext,
		objectClasses:  cfg.objectClasses,
		objectCategory: cfg.objectCategory,
	}

	explicit := make(map[string]PropertyDescriptor, len(cfg.properties))
	for _, d := range cfg.properties {
		if _, ok := t.FieldByName(d.Property); !ok {
			return nil, definitionError(t, d.Property, ErrUnknownProperty)
		}
		if _, dup := explicit[d.Property]; dup {
			return nil, definitionError(t, d.Property, ErrDuplicateProperty)
		}
		explicit[d.Property] = d
	}
	for name := range cfg.fromDirectory {
		if _, ok := t.FieldByName(name); !ok {
			return nil, definitionError(t, name, ErrUnknownProperty)
		}
	}
	for name := range cfg.toDirectory {
		if _, ok := t.FieldByName(name); !ok {
			return nil, definitionError(t, name, ErrUnknownProperty)
		}
	}

	for _, f := range reflect.VisibleFields(t) {
		d, ok, err := descriptorFor(f, explicit, cfg.autoMap)
		if err != nil {
			return nil, definitionError(t, f.Name, err)
		}
		if !ok {
			continue
		}
		if !f.IsExported() {
			return nil, definitionError(t, f.Name, fmt.Errorf("%w: field is not exported", ErrInvalidTag))
		}
		d.FromDirectory = slices.Concat(d.FromDirectory, cfg.fromDirectory[f.Name])
		d.ToDirectory = slices.Concat(d.ToDirectory, cfg.toDirectory[f.Name])

		p, err := newPropertyMapping(t, f, d)
		if err != nil {
			return nil, err
		}
		if err := om.add(p); err != nil {
			return nil, err
		}
	}

	for _, sc := range cfg.subtypes {
		if err := om.addSubtype(sc, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.constructor != nil {
		if err := om.setConstructor(cfg.constructor); err != nil {
			return nil, err
		}
	}
	return om, nil
}

func descriptorFor(f reflect.StructField, explicit map[string]PropertyDescriptor, autoMap bool) (PropertyDescriptor, bool, error) {
	if d, ok := explicit[f.Name]; ok {
		return d, true, nil
	}
	tag, hasTag := f.Tag.Lookup("ldap")
	switch {
	case tag == "-":
		return PropertyDescriptor{}, false, nil
	case !hasTag:
		if autoMap && f.IsExported() && !f.Anonymous {
			return PropertyDescriptor{Property: f.Name, Attribute: f.Name}, true, nil
		}
		return PropertyDescriptor{}, false, nil
	}
	d, err := parseTag(tag)
	d.Property = f.Name
	return d, true, err
}

// parseTag parses `ldap:"name,option,..."`. The format option swallows the
// rest of the tag so layouts may contain commas.
func parseTag(tag string) (PropertyDescriptor, error) {
	parts := strings.Split(tag, ",")
	d := PropertyDescriptor{Attribute: strings.TrimSpace(parts[0])}
	for i := 1; i < len(parts); i++ {
		opt := strings.TrimSpace(parts[i])
		switch {
		case opt == "dn":
			d.DistinguishedName = true
		case opt == "catchall":
			d.CatchAll = true
		case opt == "readonly":
			d.ReadOnly = true
		case opt == "generated":
			d.StoreGenerated = true
		case strings.HasPrefix(opt, "format="):
			rest := append([]string{strings.TrimPrefix(strings.TrimLeft(parts[i], " "), "format=")}, parts[i+1:]...)
			d.Format = strings.Join(rest, ",")
			i = len(parts)
		case opt == "":
		default:
			return d, fmt.Errorf("%w: unknown option %q", ErrInvalidTag, opt)
		}
	}
	return d, nil
}

func (om *ObjectMapping) add(p *PropertyMapping) error {
	if _, dup := om.byName[p.name]; dup {
		return definitionError(om.typ, p.name, ErrDuplicateProperty)
	}
	switch {
	case p.dn && om.dn != nil:
		return definitionError(om.typ, p.name, ErrMultipleDN)
	case p.catchAll && om.catchAll != nil:
		return definitionError(om.typ, p.name, ErrMultipleCatchAll)
	}
	if !p.catchAll {
		if other, dup := om.byAttribute[p.folded]; dup {
			return definitionError(om.typ, p.name,
				fmt.Errorf("%w: %s also mapped by %s", ErrDuplicateAttribute, p.attribute, other.name))
		}
		om.byAttribute[p.folded] = p
	}

	p.position = len(om.properties)
	om.properties = append(om.properties, p)
	om.byName[p.name] = p
	if p.dn {
		om.dn = p
	}
	if p.catchAll {
		om.catchAll = p
	}
	return nil
}

func (om *ObjectMapping) addSubtype(sc subtypeConfig, base *objectConfig) error {
	t := typeOf(sc.prototype)
	if t == om.typ {
		return definitionError(om.typ, "", fmt.Errorf("%w: %v is the base type", ErrInvalidSubtype, t))
	}
	seen := make(map[string]bool)
	var discs []string
	for _, d := range sc.discriminators {
		key := directory.Fold(d)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		discs = append(discs, key)
	}
	if len(discs) == 0 {
		return definitionError(t, "", ErrNoDiscriminators)
	}
	for _, st := range om.subtypes {
		if st.mapping.typ == t {
			return definitionError(t, "", ErrAlreadyRegistered)
		}
	}

	sub, err := buildMapping(t, inherit(t, base))
	if err != nil {
		return err
	}
	om.subtypes = append(om.subtypes, subtype{discriminators: discs, mapping: sub})
	return nil
}

// inherit returns the part of a base registration that applies to subtype
// t: explicit properties, conversion tables and auto-mapping of the fields
// t can see. A field t declares itself with an ldap tag keeps its tag.
func inherit(t reflect.Type, base *objectConfig) *objectConfig {
	cfg := &objectConfig{autoMap: base.autoMap}
	for _, d := range base.properties {
		f, ok := t.FieldByName(d.Property)
		if !ok {
			continue
		}
		if _, tagged := f.Tag.Lookup("ldap"); tagged && len(f.Index) == 1 {
			continue
		}
		cfg.properties = append(cfg.properties, d)
	}
	for name, rows := range base.fromDirectory {
		if _, ok := t.FieldByName(name); ok {
			WithDirectoryConversions(name, rows...)(cfg)
		}
	}
	for name, rows := range base.toDirectory {
		if _, ok := t.FieldByName(name); ok {
			WithInstanceConversions(name, rows...)(cfg)
		}
	}
	return cfg
}

func (om *ObjectMapping) setConstructor(fn any) error {
	v := reflect.ValueOf(fn)
	fail := func(format string, args ...any) error {
		return definitionError(om.typ, "", fmt.Errorf("%w: "+format, append([]any{ErrNoConstructor}, args...)...))
	}
	if v.Kind() != reflect.Func || v.IsNil() {
		return fail("%T is not a function", fn)
	}
	if len(om.subtypes) > 0 {
		return definitionError(om.typ, "", fmt.Errorf("%w: positional types cannot have subtypes", ErrInvalidSubtype))
	}

	ft := v.Type()
	if ft.IsVariadic() {
		return fail("constructor is variadic")
	}
	if ft.NumIn() != len(om.properties) {
		return fail("constructor takes %d parameters, %d properties are mapped", ft.NumIn(), len(om.properties))
	}
	for i, p := range om.properties {
		if !p.typ.AssignableTo(ft.In(i)) {
			return fail("parameter %d is %v, property %s is %v", i, ft.In(i), p.name, p.typ)
		}
	}

	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return fail("second result must be error")
		}
		om.ctorError = true
	default:
		return fail("constructor must return the type")
	}
	if out := ft.Out(0); out != om.typ && out != reflect.PointerTo(om.typ) {
		return fail("constructor returns %v", out)
	}

	om.constructor = v
	return nil
}

// Type returns the mapped struct type.
func (om *ObjectMapping) Type() reflect.Type { return om.typ }

// Properties returns the properties in mapping order.
func (om *ObjectMapping) Properties() []*PropertyMapping {
	return slices.Clone(om.properties)
}

// DistinguishedName returns the DN property, or nil.
func (om *ObjectMapping) DistinguishedName() *PropertyMapping { return om.dn }

// CatchAll returns the catch-all property, or nil.
func (om *ObjectMapping) CatchAll() *PropertyMapping { return om.catchAll }

// IsAnonymous reports whether values are built by a positional constructor.
func (om *ObjectMapping) IsAnonymous() bool { return om.constructor.IsValid() }

// HasSubtypes reports whether subtypes are registered.
func (om *ObjectMapping) HasSubtypes() bool { return len(om.subtypes) > 0 }

// NamingContext returns the default search base, or "".
func (om *ObjectMapping) NamingContext() string { return om.namingContext }

// ObjectCategory returns the objectCategory entity queries are scoped to.
func (om *ObjectMapping) ObjectCategory() string { return om.objectCategory }

// ObjectClasses returns the classes entity queries require.
func (om *ObjectMapping) ObjectClasses() []string {
	return slices.Clone(om.objectClasses)
}

// LookupByPropertyName returns the property backed by the named field.
func (om *ObjectMapping) LookupByPropertyName(name string) (*PropertyMapping, bool) {
	p, ok := om.byName[name]
	return p, ok
}

// LookupByAttributeName returns the property mapped to attribute, compared
// case-insensitively. When concrete is a registered subtype its own
// properties are consulted. The catch-all property is never returned.
func (om *ObjectMapping) LookupByAttributeName(attribute string, concrete reflect.Type) (*PropertyMapping, bool) {
	p, ok := om.MappingFor(concrete).byAttribute[directory.Fold(attribute)]
	return p, ok
}

// MappingFor returns the subtype mapping for t, or om itself.
func (om *ObjectMapping) MappingFor(t reflect.Type) *ObjectMapping {
	if t == nil || t == om.typ {
		return om
	}
	for _, st := range om.subtypes {
		if st.mapping.typ == t {
			return st.mapping
		}
	}
	return om
}

// ResolveConcreteType picks the type to materialize for an entry with the
// given objectClass values.
func (om *ObjectMapping) ResolveConcreteType(objectClasses []string) reflect.Type {
	return om.Resolve(objectClasses).typ
}

// Resolve returns the mapping of the most specific subtype whose
// discriminators are all among objectClasses. Larger discriminator sets win
// and ties go to the subtype registered first. Without a match the base
// mapping is returned.
func (om *ObjectMapping) Resolve(objectClasses []string) *ObjectMapping {
	if len(om.subtypes) == 0 {
		return om
	}
	present := make(map[string]bool, len(objectClasses))
	for _, oc := range objectClasses {
		present[directory.Fold(oc)] = true
	}

	best := om
	bestSize := 0
	for _, st := range om.subtypes {
		if len(st.discriminators) <= bestSize {
			continue
		}
		matched := true
		for _, d := range st.discriminators {
			if !present[d] {
				matched = false
				break
			}
		}
		if matched {
			best, bestSize = st.mapping, len(st.discriminators)
		}
	}
	return best
}

// AttributeNames lists the attributes an entity query requests: every
// mapped attribute of the type and its subtypes, objectClass when subtypes
// need resolving and "*" when a catch-all wants everything. The DN needs no
// attribute.
func (om *ObjectMapping) AttributeNames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := directory.Fold(name)
		if !seen[key] {
			seen[key] = true
			names = append(names, name)
		}
	}

	mappings := []*ObjectMapping{om}
	for _, st := range om.subtypes {
		mappings = append(mappings, st.mapping)
	}
	for _, m := range mappings {
		if m.catchAll != nil {
			add("*")
		}
	}
	for _, m := range mappings {
		for _, p := range m.properties {
			if !p.dn && !p.catchAll {
				add(p.attribute)
			}
		}
	}
	if len(om.subtypes) > 0 {
		add(directory.ObjectClassAttribute)
	}
	return names
}

// ScopeFilter ANDs the configured object classes and category with f.
func (om *ObjectMapping) ScopeFilter(f string) string {
	var parts []string
	for _, oc := range om.objectClasses {
		parts = append(parts, "(objectClass="+filter.EscapeValue([]byte(oc))+")")
	}
	if om.objectCategory != "" {
		parts = append(parts, "(objectCategory="+filter.EscapeValue([]byte(om.objectCategory))+")")
	}
	if f = strings.TrimSpace(f); f != "" {
		if !strings.HasPrefix(f, "(") {
			f = "(" + f + ")"
		}
		parts = append(parts, f)
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(&" + strings.Join(parts, "") + ")"
}

// ResultType is the type an entity query yields: the constructor's result
// for positional types, a pointer to the struct otherwise.
func (om *ObjectMapping) ResultType() reflect.Type {
	if om.constructor.IsValid() {
		return om.constructor.Type().Out(0)
	}
	return reflect.PointerTo(om.typ)
}

// New allocates a settable instance and returns a pointer to it.
func (om *ObjectMapping) New() any {
	return reflect.New(om.typ).Interface()
}

// Construct calls the positional constructor with one argument per
// property. A nil argument passes the zero value.
func (om *ObjectMapping) Construct(args []any) (any, error) {
	if !om.constructor.IsValid() {
		return nil, definitionError(om.typ, "", ErrNoConstructor)
	}
	in := make([]reflect.Value, len(args))
	ft := om.constructor.Type()
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
		} else {
			in[i] = reflect.ValueOf(a)
		}
	}
	out := om.constructor.Call(in)
	if om.ctorError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
