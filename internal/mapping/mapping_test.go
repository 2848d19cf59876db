package mapping

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
)

type person struct {
	DN    string                `ldap:",dn"`
	Name  string                `ldap:"cn"`
	Mail  []string              `ldap:"mail"`
	Age   int                   `ldap:"age"`
	Extra *directory.Attributes `ldap:",catchall"`
	Skip  string                `ldap:"-"`
	plain string
}

type user struct {
	Tracking
	DN      string `ldap:",dn"`
	Account string `ldap:"sAMAccountName"`
}

type manager struct {
	user
	Reports []string `ldap:"directReports"`
}

type admin struct {
	user
	Level int `ldap:"adminCount"`
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	om, err := reg.Register(&person{}, WithObjectClasses("person"), WithNamingContext("ou=people,dc=example,dc=com"))
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeOf(person{}), om.Type())
	assert.Len(t, om.Properties(), 5)
	assert.False(t, om.IsAnonymous())
	assert.Equal(t, "ou=people,dc=example,dc=com", om.NamingContext())

	lower, ok := om.LookupByAttributeName("cn", nil)
	require.True(t, ok)
	upper, ok := om.LookupByAttributeName("CN", nil)
	require.True(t, ok)
	assert.Same(t, lower, upper)
	assert.Equal(t, "Name", upper.PropertyName())

	dn, ok := om.LookupByAttributeName("distinguishedname", nil)
	require.True(t, ok)
	assert.True(t, dn.IsDistinguishedName())
	assert.Same(t, dn, om.DistinguishedName())

	_, ok = om.LookupByAttributeName("Skip", nil)
	assert.False(t, ok)
	assert.True(t, om.CatchAll().IsCatchAll())

	p, ok := om.LookupByPropertyName("Age")
	require.True(t, ok)
	assert.Equal(t, 3, p.Position())

	found, ok := Lookup[person](reg)
	require.True(t, ok)
	assert.Same(t, om, found)
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterErrors(t *testing.T) {
	type dupAttr struct {
		A string `ldap:"cn"`
		B string `ldap:"CN"`
	}
	type twoDN struct {
		A string `ldap:",dn"`
		B string `ldap:",dn"`
	}
	type twoCatchAll struct {
		A *directory.Attributes `ldap:",catchall"`
		B *directory.Attributes `ldap:",catchall"`
	}
	type badCatchAll struct {
		A map[string]string `ldap:",catchall"`
	}
	type badDN struct {
		A int `ldap:",dn"`
	}
	type badOption struct {
		A string `ldap:"cn,sometimes"`
	}
	type unsupported struct {
		A chan int `ldap:"cn"`
	}
	type unexported struct {
		a string `ldap:"cn"`
	}
	type status int
	type withStatus struct {
		S status `ldap:"status"`
	}
	type positional struct {
		Name string `ldap:"cn"`
		Age  int    `ldap:"age"`
	}

	tests := []struct {
		name      string
		prototype any
		opts      []ObjectOption
		want      error
	}{
		{"not a struct", 42, nil, ErrNotStruct},
		{"duplicate attribute", dupAttr{}, nil, ErrDuplicateAttribute},
		{"two dn", twoDN{}, nil, ErrMultipleDN},
		{"two catch-all", twoCatchAll{}, nil, ErrMultipleCatchAll},
		{"catch-all type", badCatchAll{}, nil, ErrUnsupportedType},
		{"dn type", badDN{}, nil, ErrUnsupportedType},
		{"unknown tag option", badOption{}, nil, ErrInvalidTag},
		{"unsupported field type", unsupported{}, nil, ErrUnsupportedType},
		{"unexported field", unexported{}, nil, ErrInvalidTag},
		{"unknown property", positional{}, []ObjectOption{WithProperty(PropertyDescriptor{Property: "Nope"})}, ErrUnknownProperty},
		{
			"duplicate conversion key", withStatus{},
			[]ObjectOption{WithDirectoryConversions("S", Convert("A", 1), Convert("A", 2))},
			ErrDuplicateConversion,
		},
		{
			"duplicate instance key", withStatus{},
			[]ObjectOption{WithInstanceConversions("S", Convert("A", 1), Convert("B", 1))},
			ErrDuplicateConversion,
		},
		{
			"two not-set rows", withStatus{},
			[]ObjectOption{WithDirectoryConversions("S", NotSet(0), NotSet(1))},
			ErrDuplicateConversion,
		},
		{
			"conversion value of wrong type", withStatus{},
			[]ObjectOption{WithConversions("S", Convert("A", "active"))},
			ErrInvalidConversion,
		},
		{
			"constructor arity", positional{},
			[]ObjectOption{WithConstructor(func(name string) positional { return positional{Name: name} })},
			ErrNoConstructor,
		},
		{
			"constructor parameter type", positional{},
			[]ObjectOption{WithConstructor(func(name string, age string) positional { return positional{} })},
			ErrNoConstructor,
		},
		{
			"constructor result", positional{},
			[]ObjectOption{WithConstructor(func(name string, age int) string { return name })},
			ErrNoConstructor,
		},
		{"subtype without discriminators", user{}, []ObjectOption{WithSubtype(manager{})}, ErrNoDiscriminators},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().Register(tt.prototype, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var de *MappingDefinitionError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestRegisterTwice(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(person{})
	_, err := reg.Register(&person{})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Panics(t, func() { reg.MustRegister(person{}) })
}

func TestPositionalConstructor(t *testing.T) {
	type point struct {
		DN   string `ldap:",dn"`
		Name string `ldap:"cn"`
		Age  int    `ldap:"age"`
	}
	om, err := NewRegistry().Register(point{}, WithConstructor(func(dn, name string, age int) (*point, error) {
		if age < 0 {
			return nil, errors.New("negative age")
		}
		return &point{DN: dn, Name: name, Age: age}, nil
	}))
	require.NoError(t, err)
	assert.True(t, om.IsAnonymous())

	v, err := om.Construct([]any{"cn=a", "a", 7})
	require.NoError(t, err)
	assert.Equal(t, &point{DN: "cn=a", Name: "a", Age: 7}, v)

	_, err = om.Construct([]any{"cn=a", "a", -1})
	assert.EqualError(t, err, "negative age")
}

func TestResolveConcreteType(t *testing.T) {
	om, err := NewRegistry().Register(user{},
		WithSubtype(manager{}, "user"),
		WithSubtype(admin{}, "User", "Manager"),
	)
	require.NoError(t, err)
	require.True(t, om.HasSubtypes())

	tests := []struct {
		name    string
		classes []string
		want    reflect.Type
	}{
		{"largest set wins", []string{"user", "manager", "top"}, reflect.TypeOf(admin{})},
		{"case-insensitive", []string{"TOP", "USER"}, reflect.TypeOf(manager{})},
		{"no match", []string{"group"}, reflect.TypeOf(user{})},
		{"no classes", nil, reflect.TypeOf(user{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, om.ResolveConcreteType(tt.classes))
		})
	}

	p, ok := om.LookupByAttributeName("adminCount", reflect.TypeOf(admin{}))
	require.True(t, ok)
	assert.Equal(t, "Level", p.PropertyName())
	_, ok = om.LookupByAttributeName("adminCount", nil)
	assert.False(t, ok)
}

type contactCard struct {
	DN    string `ldap:",dn"`
	Mail  string
	Phone string
}

type vipCard struct {
	contactCard
	Phone string `ldap:"mobile"`
	Tier  string `ldap:"tier"`
}

func TestSubtypeInheritsRegistration(t *testing.T) {
	om, err := NewRegistry().Register(contactCard{},
		WithProperty(PropertyDescriptor{Property: "Mail", Attribute: "mail"}),
		WithProperty(PropertyDescriptor{Property: "Phone", Attribute: "homePhone"}),
		WithConversions("Mail", NotSet("none")),
		WithSubtype(vipCard{}, "vip"),
	)
	require.NoError(t, err)
	vip := reflect.TypeOf(vipCard{})

	p, ok := om.LookupByAttributeName("MAIL", vip)
	require.True(t, ok)
	assert.Equal(t, "Mail", p.PropertyName())
	assert.True(t, p.HasNotSetConversion())
	v, err := p.ToInstanceValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	p, ok = om.MappingFor(vip).LookupByPropertyName("Phone")
	require.True(t, ok)
	assert.Equal(t, "mobile", p.AttributeName(), "a field the subtype declares keeps its own tag")
	_, ok = om.LookupByAttributeName("homePhone", vip)
	assert.False(t, ok)

	p, ok = om.LookupByAttributeName("homePhone", nil)
	require.True(t, ok)
	assert.Equal(t, "Phone", p.PropertyName())
}

func TestResolveTieGoesToFirstRegistered(t *testing.T) {
	om, err := NewRegistry().Register(user{},
		WithSubtype(manager{}, "user", "a"),
		WithSubtype(admin{}, "user", "b"),
	)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(manager{}), om.ResolveConcreteType([]string{"user", "a", "b"}))
}

func TestAttributeNames(t *testing.T) {
	reg := NewRegistry()
	om, err := reg.Register(user{}, WithSubtype(manager{}, "manager"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sAMAccountName", "directReports", "objectClass"}, om.AttributeNames())

	_, ok := reg.Lookup(reflect.TypeOf(&manager{}))
	assert.True(t, ok, "subtypes are registered for lookup")

	withCatchAll, err := reg.Register(person{})
	require.NoError(t, err)
	assert.Equal(t, []string{"*", "cn", "mail", "age"}, withCatchAll.AttributeNames())
}

func TestScopeFilter(t *testing.T) {
	tests := []struct {
		name   string
		opts   []ObjectOption
		filter string
		want   string
	}{
		{"nothing", nil, "", ""},
		{"filter only", nil, "cn=x", "(cn=x)"},
		{"class only", []ObjectOption{WithObjectClasses("user")}, "", "(objectClass=user)"},
		{
			"class category and filter",
			[]ObjectOption{WithObjectClasses("top", "person"), WithObjectCategory("Person")},
			"(cn=J*)",
			"(&(objectClass=top)(objectClass=person)(objectCategory=Person)(cn=J*))",
		},
		{"escaped class", []ObjectOption{WithObjectClasses("a(b)")}, "", `(objectClass=a\28b\29)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			om, err := NewRegistry().Register(person{}, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, om.ScopeFilter(tt.filter))
		})
	}
}

func TestAutoMappingAndExplicitProperty(t *testing.T) {
	type host struct {
		Name    string
		Address string
		Note    string `ldap:"-"`
	}
	om, err := NewRegistry().Register(host{},
		WithAutoMapping(),
		WithProperty(PropertyDescriptor{Property: "Address", Attribute: "ipHostNumber", ReadOnly: true}),
	)
	require.NoError(t, err)

	p, ok := om.LookupByAttributeName("name", nil)
	require.True(t, ok)
	assert.Equal(t, "Name", p.PropertyName())

	p, ok = om.LookupByAttributeName("iphostnumber", nil)
	require.True(t, ok)
	assert.True(t, p.IsReadOnly())
	assert.Len(t, om.Properties(), 2)
}

func TestParseTag(t *testing.T) {
	d, err := parseTag("whenCreated, readonly,generated,format=2006-01-02, 15:04")
	require.NoError(t, err)
	assert.Equal(t, "whenCreated", d.Attribute)
	assert.True(t, d.ReadOnly)
	assert.True(t, d.StoreGenerated)
	assert.Equal(t, "2006-01-02, 15:04", d.Format)
}

func TestChanges(t *testing.T) {
	om, err := NewRegistry().Register(user{})
	require.NoError(t, err)

	u := &user{DN: "cn=u", Account: "old"}
	account, _ := om.LookupByPropertyName("Account")
	u.SetOriginalValues([]OriginalValue{{Property: "Account", Value: "old"}})
	assert.Empty(t, om.Changes(u, u.OriginalValues()))

	u.Account = "new"
	assert.Equal(t, []*PropertyMapping{account}, om.Changes(u, u.OriginalValues()))
}
