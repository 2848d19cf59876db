package mapping

import "reflect"

// ObjectOption configures a registration.
type ObjectOption func(*objectConfig)

type subtypeConfig struct {
	prototype      any
	discriminators []string
}

type objectConfig struct {
	namingContext  string
	objectClasses  []string
	objectCategory string
	properties     []PropertyDescriptor
	fromDirectory  map[string][]Conversion
	toDirectory    map[string][]Conversion
	subtypes       []subtypeConfig
	constructor    any
	autoMap        bool
}

// WithNamingContext sets the default search base for the type.
func WithNamingContext(dn string) ObjectOption {
	return func(c *objectConfig) { c.namingContext = dn }
}

// WithObjectClasses scopes entity queries to entries carrying every class.
func WithObjectClasses(classes ...string) ObjectOption {
	return func(c *objectConfig) { c.objectClasses = append(c.objectClasses, classes...) }
}

// WithObjectCategory scopes entity queries to one objectCategory.
func WithObjectCategory(category string) ObjectOption {
	return func(c *objectConfig) { c.objectCategory = category }
}

// WithProperty maps a field explicitly. It takes precedence over the
// field's struct tag.
func WithProperty(d PropertyDescriptor) ObjectOption {
	return func(c *objectConfig) { c.properties = append(c.properties, d) }
}

// WithConversions adds rows to both conversion tables of a property.
func WithConversions(property string, rows ...Conversion) ObjectOption {
	return func(c *objectConfig) {
		WithDirectoryConversions(property, rows...)(c)
		WithInstanceConversions(property, rows...)(c)
	}
}

// WithDirectoryConversions adds rows to the directory-to-instance table only.
func WithDirectoryConversions(property string, rows ...Conversion) ObjectOption {
	return func(c *objectConfig) {
		if c.fromDirectory == nil {
			c.fromDirectory = make(map[string][]Conversion)
		}
		c.fromDirectory[property] = append(c.fromDirectory[property], rows...)
	}
}

// WithInstanceConversions adds rows to the instance-to-directory table only.
func WithInstanceConversions(property string, rows ...Conversion) ObjectOption {
	return func(c *objectConfig) {
		if c.toDirectory == nil {
			c.toDirectory = make(map[string][]Conversion)
		}
		c.toDirectory[property] = append(c.toDirectory[property], rows...)
	}
}

// WithSubtype registers a more specific struct type materialized when an
// entry's objectClass values include every discriminator. The subtype is
// mapped from its own struct tags; embedding the base type carries the
// base fields over together with the properties, conversions and
// auto-mapping registered for them.
func WithSubtype(prototype any, discriminators ...string) ObjectOption {
	return func(c *objectConfig) {
		c.subtypes = append(c.subtypes, subtypeConfig{prototype: prototype, discriminators: discriminators})
	}
}

// WithConstructor makes the type positional. fn must take one parameter
// per mapped field in field order and return the type or a pointer to it,
// optionally followed by an error.
func WithConstructor(fn any) ObjectOption {
	return func(c *objectConfig) { c.constructor = fn }
}

// WithAutoMapping maps every exported field without an ldap tag to the
// attribute of the same name.
func WithAutoMapping() ObjectOption {
	return func(c *objectConfig) { c.autoMap = true }
}

func typeOf(prototype any) reflect.Type {
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
