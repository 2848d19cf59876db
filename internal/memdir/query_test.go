package memdir_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
	"github.com/KilimcininKorOglu/dirquery/internal/memdir"
	"github.com/KilimcininKorOglu/dirquery/internal/query"
)

type person struct {
	DN     string `ldap:",dn"`
	Name   string `ldap:"cn"`
	Number int    `ldap:"employeeNumber"`
}

func directoryOf(t *testing.T, n int) *memdir.Directory {
	t.Helper()
	d := memdir.New()
	for i := range n {
		e := directory.NewEntry("cn=p" + strconv.Itoa(i) + ",ou=people,dc=example,dc=com")
		e.Attributes.AddString("objectClass", "top", "person")
		e.Attributes.AddString("cn", "p"+strconv.Itoa(i))
		e.Attributes.AddString("employeeNumber", strconv.Itoa(100-i))
		require.NoError(t, d.Add(e))
	}
	return d
}

func personMapping(t *testing.T) *mapping.ObjectMapping {
	t.Helper()
	om, err := mapping.NewRegistry().Register(person{},
		mapping.WithNamingContext("ou=people,dc=example,dc=com"),
		mapping.WithObjectClasses("person"),
	)
	require.NoError(t, err)
	return om
}

func TestQueryPagesThroughDirectory(t *testing.T) {
	ctx := context.Background()
	opts, err := query.NewEntityOptions(personMapping(t), "", query.WithPageSize(3), query.OrderBy("cn"))
	require.NoError(t, err)

	cmd := query.NewCommand(directoryOf(t, 7), opts)
	people, err := query.Collect[*person](ctx, cmd.Execute(ctx))
	require.NoError(t, err)

	require.Len(t, people, 7)
	assert.Equal(t, "p0", people[0].Name)
	assert.Equal(t, 100, people[0].Number)
	assert.Equal(t, "cn=p6,ou=people,dc=example,dc=com", people[6].DN)
	assert.Equal(t, 3, cmd.Requests())
	assert.Equal(t, query.StateExhausted, cmd.State())
}

func TestQuerySkipTakeAcrossPages(t *testing.T) {
	ctx := context.Background()
	opts, err := query.NewEntityOptions(personMapping(t), "",
		query.WithPageSize(2),
		query.OrderByDescending("employeeNumber"),
		query.WithSkip(3),
		query.WithTake(3),
	)
	require.NoError(t, err)

	cmd := query.NewCommand(directoryOf(t, 10), opts)
	people, err := query.Collect[*person](ctx, cmd.Execute(ctx))
	require.NoError(t, err)

	// Descending employeeNumber is ascending cn: p3, p4, p5.
	require.Len(t, people, 3)
	assert.Equal(t, []int{97, 96, 95}, []int{people[0].Number, people[1].Number, people[2].Number})
	assert.Equal(t, 3, cmd.Requests())
}

func TestQuerySingleRequestSizeLimit(t *testing.T) {
	ctx := context.Background()
	opts, err := query.NewEntityOptions(personMapping(t), "", query.WithTake(2), query.OrderBy("cn"))
	require.NoError(t, err)

	cmd := query.NewCommand(directoryOf(t, 5), opts)
	people, err := query.Collect[*person](ctx, cmd.Execute(ctx))
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, 1, cmd.Requests())
}

func TestQueryCount(t *testing.T) {
	opts, err := query.NewEntityOptions(personMapping(t), "(employeeNumber>=96)", query.WithPageSize(2))
	require.NoError(t, err)

	n, err := query.NewCommand(directoryOf(t, 10), opts).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQueryMissingBaseFaults(t *testing.T) {
	ctx := context.Background()
	opts, err := query.NewListingOptions("", query.WithBaseDN("ou=nowhere,dc=example,dc=com"))
	require.NoError(t, err)

	cmd := query.NewCommand(directoryOf(t, 1), opts)
	_, err = query.Collect[directory.Listing](ctx, cmd.Execute(ctx))
	require.Error(t, err)
	assert.Equal(t, query.StateFaulted, cmd.State())
}
