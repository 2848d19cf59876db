package query

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
)

func rawEntry(dn string, attrs ...string) *directory.Entry {
	return directory.FromResultEntry(entry(dn, attrs...))
}

func TestCatchAllPrecedence(t *testing.T) {
	om, err := mapping.NewRegistry().Register(withExtra{})
	require.NoError(t, err)
	opts, err := NewEntityOptions(om, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"*", "cn"}, opts.Attributes())

	v, err := opts.MakeTransformer().Transform(rawEntry("cn=x,dc=example,dc=com", "cn", "x", "unmapped", "y"))
	require.NoError(t, err)

	got := v.(*withExtra)
	assert.Equal(t, "cn=x,dc=example,dc=com", got.DN)
	assert.Equal(t, "x", got.Name)
	require.NotNil(t, got.Extra)
	assert.Equal(t, []string{"cn", "unmapped"}, got.Extra.Names())
	first, _ := got.Extra.First("UNMAPPED")
	assert.Equal(t, "y", first)
}

func TestCatchAllLeavesAbsentAttributesZero(t *testing.T) {
	type profile struct {
		Name  string                `ldap:"cn"`
		Title string                `ldap:"title"`
		Rest  *directory.Attributes `ldap:",catchall"`
	}
	om, err := mapping.NewRegistry().Register(profile{})
	require.NoError(t, err)
	opts, err := NewEntityOptions(om, "")
	require.NoError(t, err)

	v, err := opts.MakeTransformer().Transform(rawEntry("cn=a", "cn", "a"))
	require.NoError(t, err)
	got := v.(*profile)
	assert.Equal(t, "a", got.Name)
	assert.Empty(t, got.Title)
}

type member struct {
	DN   string `ldap:",dn"`
	Name string `ldap:"cn"`
	Mail string
}

type owner struct {
	member
	Groups []string `ldap:"ownedGroups"`
}

func TestSubtypeResolution(t *testing.T) {
	bossEntry := func(extra ...string) *directory.Entry {
		e := directory.NewEntry("cn=boss,dc=example,dc=com")
		e.Attributes.AddString("objectClass", "user", "manager", "top")
		e.Attributes.AddString("sAMAccountName", "boss")
		e.Attributes.AddString("directReports", "cn=a", "cn=b")
		for i := 0; i+1 < len(extra); i += 2 {
			e.Attributes.AddString(extra[i], extra[i+1])
		}
		return e
	}
	ownerEntry := func() *directory.Entry {
		e := directory.NewEntry("cn=o,dc=example,dc=com")
		e.Attributes.AddString("objectClass", "top", "groupOwner")
		e.Attributes.AddString("cn", "o")
		e.Attributes.AddString("mail", "o@example.com")
		e.Attributes.AddString("ownedGroups", "cn=g")
		return e
	}

	tests := []struct {
		name  string
		proto any
		opts  []mapping.ObjectOption
		entry *directory.Entry
		check func(t *testing.T, v any)
	}{
		{
			name:  "struct tags",
			proto: account{},
			opts:  []mapping.ObjectOption{mapping.WithSubtype(manager{}, "user", "manager")},
			entry: bossEntry(),
			check: func(t *testing.T, v any) {
				got, ok := v.(*manager)
				require.True(t, ok, "got %T", v)
				assert.Equal(t, "boss", got.Login)
				assert.Equal(t, "cn=boss,dc=example,dc=com", got.DN)
				assert.Equal(t, []string{"cn=a", "cn=b"}, got.Reports)
			},
		},
		{
			name:  "base conversion table",
			proto: account{},
			opts: []mapping.ObjectOption{
				mapping.WithConversions("Enabled", mapping.Convert("512", true), mapping.NotSet(false)),
				mapping.WithSubtype(manager{}, "user", "manager"),
			},
			entry: bossEntry("enabled", "512"),
			check: func(t *testing.T, v any) {
				got, ok := v.(*manager)
				require.True(t, ok, "got %T", v)
				assert.True(t, got.Enabled)
			},
		},
		{
			name:  "base explicit property",
			proto: member{},
			opts: []mapping.ObjectOption{
				mapping.WithProperty(mapping.PropertyDescriptor{Property: "Mail", Attribute: "mail"}),
				mapping.WithSubtype(owner{}, "groupOwner"),
			},
			entry: ownerEntry(),
			check: func(t *testing.T, v any) {
				got, ok := v.(*owner)
				require.True(t, ok, "got %T", v)
				assert.Equal(t, "o@example.com", got.Mail)
				assert.Equal(t, []string{"cn=g"}, got.Groups)
			},
		},
		{
			name:  "base auto mapping",
			proto: member{},
			opts: []mapping.ObjectOption{
				mapping.WithAutoMapping(),
				mapping.WithSubtype(owner{}, "groupOwner"),
			},
			entry: ownerEntry(),
			check: func(t *testing.T, v any) {
				got, ok := v.(*owner)
				require.True(t, ok, "got %T", v)
				assert.Equal(t, "o", got.Name)
				assert.Equal(t, "o@example.com", got.Mail)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			om, err := mapping.NewRegistry().Register(tt.proto, tt.opts...)
			require.NoError(t, err)
			opts, err := NewEntityOptions(om, "")
			require.NoError(t, err)

			v, err := opts.MakeTransformer().Transform(tt.entry)
			require.NoError(t, err)
			tt.check(t, v)
		})
	}

	opts, err := NewEntityOptions(accountMapping(t), "")
	require.NoError(t, err)
	plain := directory.NewEntry("cn=u")
	plain.Attributes.AddString("objectClass", "user", "top")
	v, err := opts.MakeTransformer().Transform(plain)
	require.NoError(t, err)
	assert.IsType(t, &account{}, v)
}

func TestWildcardRequestResolvesEntryAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs []string
	}{
		{"star alone", []string{"*"}},
		{"star with names", []string{"cn", "*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := NewEntityOptions(contactMapping(t), "", WithAttributes(tt.attrs...))
			require.NoError(t, err)

			v, err := opts.MakeTransformer().Transform(rawEntry("cn=x", "cn", "x", "mail", "m"))
			require.NoError(t, err)
			assert.Equal(t, &contact{DN: "cn=x", Name: "x", Mail: "m"}, v)
		})
	}
}

func TestSettableDefaultsAndSnapshot(t *testing.T) {
	om, err := mapping.NewRegistry().Register(account{},
		mapping.WithConversions("Enabled", mapping.Convert("512", true), mapping.NotSet(false)),
	)
	require.NoError(t, err)
	opts, err := NewEntityOptions(om, "", WithAttributes("logonCount", "sAMAccountName", "enabled"))
	require.NoError(t, err)

	v, err := opts.MakeTransformer().Transform(rawEntry("cn=u", "sAMAccountName", "u1", "enabled", "512", "ignored", "z"))
	require.NoError(t, err)
	got := v.(*account)

	assert.Equal(t, "cn=u", got.DN, "the DN is assigned without being requested")
	assert.Equal(t, "u1", got.Login)
	assert.Zero(t, got.Logons)
	assert.True(t, got.Enabled)
	assert.Equal(t, []mapping.OriginalValue{
		{Property: "DN", Value: "cn=u"},
		{Property: "Login", Value: "u1"},
		{Property: "Logons", Value: 0},
		{Property: "Enabled", Value: true},
	}, got.OriginalValues())
	assert.Empty(t, om.Changes(got, got.OriginalValues()))
}

func TestPositionalConstruction(t *testing.T) {
	om, err := mapping.NewRegistry().Register(badge{},
		mapping.WithConstructor(newBadge),
		mapping.WithConversions("Level", mapping.NotSet(-1)),
	)
	require.NoError(t, err)
	opts, err := NewEntityOptions(om, "")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[badge](), opts.DeclaredReturnType())

	tr := opts.MakeTransformer()
	v, err := tr.Transform(rawEntry("cn=a", "cn", "a", "level", "3"))
	require.NoError(t, err)
	assert.Equal(t, badge{Name: "a", Level: 3}, v)

	v, err = tr.Transform(rawEntry("cn=b", "cn", "b"))
	require.NoError(t, err)
	assert.Equal(t, badge{Name: "b", Level: -1}, v)

	_, err = tr.Transform(rawEntry("cn=c", "cn", "c", "level", "high"))
	var ce *mapping.ConversionError
	assert.ErrorAs(t, err, &ce)

	assert.Equal(t, badge{}, tr.Default())
}

func TestProjectionDefault(t *testing.T) {
	opts, err := Project(contactMapping(t), "", func(c *contact) int { return len(c.Name) }, WithProperties("Name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cn"}, opts.Attributes())
	assert.Equal(t, reflect.TypeFor[int](), opts.DeclaredReturnType())

	tr := opts.MakeTransformer()
	assert.Equal(t, 0, tr.Default())

	v, err := tr.Transform(rawEntry("cn=abc", "cn", "abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestProjectionTypeMismatch(t *testing.T) {
	opts, err := Project(contactMapping(t), "", func(a *account) string { return a.Login })
	require.NoError(t, err)
	_, err = opts.MakeTransformer().Transform(rawEntry("cn=a", "cn", "a"))
	assert.ErrorIs(t, err, ErrResultType)
}

func TestListingAndDictionary(t *testing.T) {
	e := rawEntry("cn=a,dc=example,dc=com", "cn", "a", "mail", "a@example.com")

	listing, err := NewListingOptions("", WithAttributes("cn"))
	require.NoError(t, err)
	v, err := listing.MakeTransformer().Transform(e)
	require.NoError(t, err)
	l := v.(directory.Listing)
	assert.Equal(t, "cn=a,dc=example,dc=com", l.DN)
	assert.True(t, l.Attributes.Has("mail"))
	assert.Equal(t, directory.Listing{}, listing.MakeTransformer().Default())

	dict, err := NewDictionaryOptions("", WithAttributes("cn"))
	require.NoError(t, err)
	v, err = dict.MakeTransformer().Transform(e)
	require.NoError(t, err)
	d := v.(directory.Dictionary)
	assert.Equal(t, "cn=a,dc=example,dc=com", d.DN())
	mail, ok := d.Get("MAIL")
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("a@example.com")}, mail)
	assert.Nil(t, dict.MakeTransformer().Default())

	assert.Equal(t, ShapeListing, listing.Shape())
	assert.Equal(t, ShapeDictionary, dict.Shape())
	assert.Equal(t, ldap.ScopeWholeSubtree, dict.Scope())
}
