// Package mapping binds Go struct types to directory attributes.
//
// A Registry turns a struct type into an ObjectMapping once, at startup.
// Fields are mapped with the ldap struct tag:
//
//	type User struct {
//	    DN        string              `ldap:",dn"`
//	    Name      string              `ldap:"cn"`
//	    Mail      []string            `ldap:"mail"`
//	    Created   time.Time           `ldap:"whenCreated,readonly,generated"`
//	    GUID      uuid.UUID           `ldap:"objectGUID,readonly"`
//	    Expires   time.Time           `ldap:"accountExpires,format=filetime"`
//	    Extra     *directory.Attributes `ldap:",catchall"`
//	    Ignored   string              `ldap:"-"`
//	}
//
//	reg := mapping.NewRegistry()
//	users, err := reg.Register(User{}, mapping.WithObjectClasses("user"))
//
// Tag options:
//
//	dn         the field receives the entry DN (string fields only)
//	catchall   the field receives every attribute (*directory.Attributes)
//	readonly   never written back
//	generated  computed by the directory server
//	format=L   time layout; "filetime" and "unix" select integer encodings
//
// Registration validates the whole shape up front and fails with a
// *MappingDefinitionError. After that an ObjectMapping never changes and
// may be read from any number of goroutines.
//
// Values are converted by an explicit table when one is configured with
// WithConversions, and by built-in coercion otherwise. Coercion covers
// strings, byte slices, integers, floats, LDAP booleans, GeneralizedTime,
// binary and textual GUIDs, pointers, slices of any of these and any type
// implementing encoding.TextUnmarshaler.
//
// Types registered with WithConstructor are positional: their values are
// built by calling the constructor with one argument per mapped field, in
// field order. Every other type is settable and is allocated and filled
// field by field.
package mapping
