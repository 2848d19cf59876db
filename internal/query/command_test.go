package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
)

func TestPagingFollowsCookies(t *testing.T) {
	om := contactMapping(t)
	extra := ldap.Control{OID: "1.2.840.113556.1.4.417", Criticality: true}
	opts, err := NewEntityOptions(om, "(mail=*)", OrderBy("cn"), WithControls(extra), WithPageSize(2))
	require.NoError(t, err)

	conn := &scriptedConn{pages: []page{
		{entries: people("a", 2), cookie: "A"},
		{entries: people("b", 2), cookie: "B"},
		{entries: people("c", 2), cookie: ""},
	}}
	cmd := NewCommand(conn, opts)
	assert.Equal(t, StateNotStarted, cmd.State())

	results := cmd.Execute(context.Background())
	got, err := Collect[*contact](context.Background(), results)
	require.NoError(t, err)

	assert.Equal(t, []string{"a0", "a1", "b0", "b1", "c0", "c1"}, names(got))
	assert.Equal(t, []string{"", "A", "B"}, conn.cookies(t))
	assert.Equal(t, StateExhausted, cmd.State())
	assert.Nil(t, cmd.Cursor())

	assert.False(t, results.Next(context.Background()))
	assert.Len(t, conn.requests, 3, "a pull after exhaustion must not send a request")

	for i, req := range conn.requests {
		require.Len(t, req.Controls, 3, "request %d", i)
		assert.Equal(t, ldap.SortRequestOID, req.Controls[0].OID)
		assert.Equal(t, extra, req.Controls[1])
		assert.Equal(t, ldap.PagedResultsOID, req.Controls[2].OID)
		assert.False(t, req.Controls[2].Criticality)
		assert.Equal(t, "ou=people,dc=example,dc=com", req.BaseObject)
		assert.Equal(t, "(&(objectClass=person)(mail=*))", req.Filter)
		assert.Zero(t, req.SizeLimit)
	}
}

func TestPagesAreFetchedLazily(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithPageSize(2))
	require.NoError(t, err)
	conn := &scriptedConn{pages: []page{
		{entries: people("a", 2), cookie: "A"},
		{entries: people("b", 2), cookie: ""},
	}}
	cmd := NewCommand(conn, opts)
	results := cmd.Execute(context.Background())

	require.True(t, results.Next(context.Background()))
	require.True(t, results.Next(context.Background()))
	assert.Len(t, conn.requests, 1)
	assert.Equal(t, StateAwaitingPage, cmd.State())
	require.NotNil(t, cmd.Cursor())
	assert.Equal(t, []byte("A"), cmd.Cursor().Cookie)
	assert.Equal(t, 2, cmd.Cursor().PageSize)

	require.True(t, results.Next(context.Background()))
	assert.Len(t, conn.requests, 2)
}

func TestTakeBoundary(t *testing.T) {
	var transformed int
	count := func(c *contact) string {
		transformed++
		return c.Name
	}

	t.Run("paged", func(t *testing.T) {
		transformed = 0
		opts, err := Project(contactMapping(t), "", count, WithTake(5), WithPageSize(3))
		require.NoError(t, err)
		conn := &scriptedConn{pages: []page{
			{entries: people("a", 8), cookie: "next"},
			{entries: people("b", 8), cookie: ""},
		}}
		cmd := NewCommand(conn, opts)

		got, err := Collect[string](context.Background(), cmd.Execute(context.Background()))
		require.NoError(t, err)
		assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4"}, got)
		assert.Len(t, conn.requests, 1)
		assert.Equal(t, 5, transformed)
		assert.Equal(t, StateExhausted, cmd.State())
	})

	t.Run("single request", func(t *testing.T) {
		transformed = 0
		opts, err := Project(contactMapping(t), "", count, WithTake(5), WithSkip(1))
		require.NoError(t, err)
		conn := &scriptedConn{pages: []page{
			{entries: people("a", 8), noControl: true, code: ldap.ResultSizeLimitExceeded},
		}}
		cmd := NewCommand(conn, opts)

		got, err := Collect[string](context.Background(), cmd.Execute(context.Background()))
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, got)
		require.Len(t, conn.requests, 1)
		assert.Equal(t, 6, conn.requests[0].SizeLimit)
		assert.Equal(t, []string{"<none>"}, conn.cookies(t))
		assert.Equal(t, 5, transformed)
	})

	t.Run("zero", func(t *testing.T) {
		opts, err := NewEntityOptions(contactMapping(t), "", WithTake(0))
		require.NoError(t, err)
		conn := &scriptedConn{}
		cmd := NewCommand(conn, opts)

		got, err := Collect[*contact](context.Background(), cmd.Execute(context.Background()))
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, conn.requests)
		assert.Equal(t, StateExhausted, cmd.State())
	})
}

func TestSkip(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithSkip(3))
	require.NoError(t, err)
	conn := &scriptedConn{pages: []page{{entries: people("a", 5)}}}

	got, err := Collect[*contact](context.Background(), NewCommand(conn, opts).Execute(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a4"}, names(got))
}

func TestSkipAcrossPages(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithSkip(3), WithTake(2), WithPageSize(2))
	require.NoError(t, err)
	conn := &scriptedConn{pages: []page{
		{entries: people("a", 2), cookie: "A"},
		{entries: people("b", 2), cookie: "B"},
		{entries: people("c", 2), cookie: ""},
	}}

	got, err := Collect[*contact](context.Background(), NewCommand(conn, opts).Execute(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "c0"}, names(got))
	assert.Len(t, conn.requests, 3)
}

func TestWithoutPaging(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithoutPaging(), OrderByDescending("cn"))
	require.NoError(t, err)
	conn := &scriptedConn{pages: []page{{entries: people("a", 3), noControl: true}}}
	cmd := NewCommand(conn, opts)

	got, err := Collect[*contact](context.Background(), cmd.Execute(context.Background()))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	require.Len(t, conn.requests, 1)
	require.Len(t, conn.requests[0].Controls, 1)
	assert.Equal(t, ldap.SortRequestOID, conn.requests[0].Controls[0].OID)
	assert.Zero(t, conn.requests[0].SizeLimit)
	assert.Equal(t, StateExhausted, cmd.State())
}

func TestYieldNoResults(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithYieldNoResults())
	require.NoError(t, err)

	conn := &scriptedConn{}
	cmd := NewCommand(conn, opts)
	got, err := Collect[*contact](context.Background(), cmd.Execute(context.Background()))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, StateExhausted, cmd.State())

	n, err := NewCommand(conn, opts).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, conn.requests)
}

func TestFaults(t *testing.T) {
	transport := errors.New("connection reset by peer")
	tests := []struct {
		name  string
		pages []page
		check func(t *testing.T, err error)
	}{
		{
			name:  "transport",
			pages: []page{{entries: people("a", 2), cookie: "A"}, {err: transport}},
			check: func(t *testing.T, err error) {
				var ce *ConnectionError
				require.ErrorAs(t, err, &ce)
				assert.ErrorIs(t, err, transport)
			},
		},
		{
			name:  "missing paged control",
			pages: []page{{entries: people("a", 2), cookie: "A"}, {entries: people("b", 2), noControl: true}},
			check: func(t *testing.T, err error) {
				var pv *ProtocolViolationError
				require.ErrorAs(t, err, &pv)
				assert.Equal(t, ldap.PagedResultsOID, pv.OID)
			},
		},
		{
			name:  "malformed paged control",
			pages: []page{{entries: people("a", 2), cookie: "A"}, {badValue: true}},
			check: func(t *testing.T, err error) {
				var pv *ProtocolViolationError
				require.ErrorAs(t, err, &pv)
				assert.ErrorIs(t, err, ldap.ErrMalformedControl)
			},
		},
		{
			name:  "result code",
			pages: []page{{entries: people("a", 2), cookie: "A"}, {code: ldap.ResultBusy}},
			check: func(t *testing.T, err error) {
				assert.True(t, ldap.IsResultCode(err, ldap.ResultBusy))
			},
		},
		{
			name: "conversion",
			pages: []page{
				{entries: people("a", 2), cookie: "A"},
				{entries: []*ldap.SearchResultEntry{entry("cn=x", "sAMAccountName", "x", "logonCount", "many")}},
			},
			check: func(t *testing.T, err error) {
				var ce *mapping.ConversionError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "Logons", ce.Property)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			om := contactMapping(t)
			if tt.name == "conversion" {
				om = accountMapping(t)
			}
			opts, err := NewEntityOptions(om, "", WithPageSize(2))
			require.NoError(t, err)
			conn := &scriptedConn{pages: tt.pages}
			cmd := NewCommand(conn, opts)
			results := cmd.Execute(context.Background())

			var n int
			for results.Next(context.Background()) {
				n++
			}
			assert.Equal(t, 2, n)
			require.Error(t, results.Err())
			tt.check(t, results.Err())
			assert.Equal(t, StateFaulted, cmd.State())
			assert.Equal(t, results.Err(), cmd.Err())

			assert.False(t, results.Next(context.Background()))
			assert.Len(t, conn.requests, 2, "a faulted query is not retried")
		})
	}
}

func TestCanceledContext(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "")
	require.NoError(t, err)
	conn := &scriptedConn{}
	cmd := NewCommand(conn, opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := cmd.Execute(ctx)
	assert.False(t, results.Next(ctx))
	assert.ErrorIs(t, results.Err(), context.Canceled)
	assert.Equal(t, StateFaulted, cmd.State())
	assert.Empty(t, conn.requests)
}

func TestCount(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithPageSize(3), WithSkip(1))
	require.NoError(t, err)
	conn := &scriptedConn{pages: []page{
		{entries: people("a", 3), cookie: "A"},
		{entries: people("b", 2), cookie: ""},
	}}

	n, err := NewCommand(conn, opts).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, conn.requests, 2)
	for _, req := range conn.requests {
		assert.Equal(t, []string{ldap.NoAttributes}, req.Attributes)
	}
}

func TestCountPlans(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		opts, err := NewEntityOptions(contactMapping(t), "", WithCount())
		require.NoError(t, err)
		conn := &scriptedConn{pages: []page{{entries: people("a", 3)}}}

		v, ok, err := First[int](context.Background(), NewCommand(conn, opts).Execute(context.Background()))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, v)
	})

	t.Run("long", func(t *testing.T) {
		opts, err := NewListingOptions("", WithLongCount())
		require.NoError(t, err)
		conn := &scriptedConn{pages: []page{{entries: people("a", 2)}}}

		n, err := NewCommand(conn, opts).LongCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("default after the count", func(t *testing.T) {
		opts, err := NewEntityOptions(contactMapping(t), "", WithCount())
		require.NoError(t, err)
		conn := &scriptedConn{pages: []page{{entries: people("a", 1)}}}

		r := NewCommand(conn, opts).Execute(context.Background())
		assert.Equal(t, 0, r.Default())
		require.True(t, r.Next(context.Background()))
		v, ok, err := First[int](context.Background(), r)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("long default", func(t *testing.T) {
		opts, err := NewEntityOptions(contactMapping(t), "", WithLongCount())
		require.NoError(t, err)
		r := NewCommand(&scriptedConn{}, opts).Execute(context.Background())
		assert.Equal(t, int64(0), r.Default())
	})
}

func TestNarrowCount(t *testing.T) {
	n, err := narrowCount(math.MaxInt32, CountInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, n)

	_, err = narrowCount(math.MaxInt32+1, CountInt)
	assert.ErrorIs(t, err, ErrCountOverflow)
	_, err = narrowCount(math.MaxInt32+1, CountNone)
	assert.ErrorIs(t, err, ErrCountOverflow)

	_, err = narrowCount(math.MaxInt32+1, CountLong)
	assert.NoError(t, err)
}

func TestAlreadyExecuted(t *testing.T) {
	opts, err := NewEntityOptions(contactMapping(t), "", WithYieldNoResults())
	require.NoError(t, err)
	cmd := NewCommand(&scriptedConn{}, opts)

	cmd.Execute(context.Background())
	results := cmd.Execute(context.Background())
	assert.False(t, results.Next(context.Background()))
	assert.ErrorIs(t, results.Err(), ErrAlreadyExecuted)

	_, err = cmd.Count(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestReferences(t *testing.T) {
	opts, err := NewListingOptions("", WithoutPaging())
	require.NoError(t, err)
	conn := ConnectionFunc(func(context.Context, *ldap.SearchRequest) (*ldap.SearchResponse, error) {
		return &ldap.SearchResponse{
			Entries:    people("a", 1),
			References: []string{"ldap://other.example.com/dc=other"},
		}, nil
	})
	cmd := NewCommand(conn, opts)

	_, err = Collect[any](context.Background(), cmd.Execute(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{"ldap://other.example.com/dc=other"}, cmd.References())
	assert.Equal(t, 1, cmd.Requests())
}
