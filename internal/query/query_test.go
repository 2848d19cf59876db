package query

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
)

type contact struct {
	DN   string `ldap:",dn"`
	Name string `ldap:"cn"`
	Mail string `ldap:"mail"`
}

type account struct {
	mapping.Tracking
	DN      string `ldap:",dn"`
	Login   string `ldap:"sAMAccountName"`
	Logons  int    `ldap:"logonCount"`
	Enabled bool   `ldap:"enabled"`
}

type manager struct {
	account
	Reports []string `ldap:"directReports"`
}

type withExtra struct {
	DN    string                `ldap:",dn"`
	Name  string                `ldap:"cn"`
	Extra *directory.Attributes `ldap:",catchall"`
}

type badge struct {
	Name  string `ldap:"cn"`
	Level int    `ldap:"level"`
}

func newBadge(name string, level int) badge {
	return badge{Name: name, Level: level}
}

func contactMapping(t *testing.T) *mapping.ObjectMapping {
	t.Helper()
	om, err := mapping.NewRegistry().Register(contact{},
		mapping.WithNamingContext("ou=people,dc=example,dc=com"),
		mapping.WithObjectClasses("person"),
	)
	require.NoError(t, err)
	return om
}

func accountMapping(t *testing.T) *mapping.ObjectMapping {
	t.Helper()
	om, err := mapping.NewRegistry().Register(account{},
		mapping.WithSubtype(manager{}, "user", "manager"),
	)
	require.NoError(t, err)
	return om
}

// page is one scripted response.
type page struct {
	entries   []*ldap.SearchResultEntry
	cookie    string
	noControl bool
	badValue  bool
	code      ldap.ResultCode
	err       error
}

// scriptedConn answers requests from a fixed script and fails any request
// past its end.
type scriptedConn struct {
	pages    []page
	requests []*ldap.SearchRequest
}

var errUnexpectedRequest = errors.New("unexpected request")

func (s *scriptedConn) SendRequest(_ context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error) {
	s.requests = append(s.requests, req.Clone())
	if len(s.requests) > len(s.pages) {
		return nil, errUnexpectedRequest
	}
	p := s.pages[len(s.requests)-1]
	if p.err != nil {
		return nil, p.err
	}

	resp := &ldap.SearchResponse{
		Entries: p.entries,
		Result:  ldap.LDAPResult{ResultCode: p.code},
	}
	switch {
	case p.badValue:
		resp.Controls = []ldap.Control{{OID: ldap.PagedResultsOID, Value: []byte{0x04, 0x01}}}
	case !p.noControl:
		ctrl, err := (&ldap.PagedResultsControl{Cookie: []byte(p.cookie)}).ToLDAPControl()
		if err != nil {
			return nil, err
		}
		resp.Controls = []ldap.Control{ctrl}
	}
	return resp, nil
}

func (s *scriptedConn) cookies(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, req := range s.requests {
		prc, err := ldap.FindPagedResultsControl(req.Controls)
		require.NoError(t, err)
		if prc == nil {
			out = append(out, "<none>")
			continue
		}
		out = append(out, string(prc.Cookie))
	}
	return out
}

func entry(dn string, attrs ...string) *ldap.SearchResultEntry {
	e := &ldap.SearchResultEntry{ObjectName: dn}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes = append(e.Attributes, ldap.PartialAttribute{
			Type:   attrs[i],
			Values: [][]byte{[]byte(attrs[i+1])},
		})
	}
	return e
}

// people returns n contact entries named <prefix>0 .. <prefix>n-1.
func people(prefix string, n int) []*ldap.SearchResultEntry {
	out := make([]*ldap.SearchResultEntry, n)
	for i := range out {
		name := prefix + strconv.Itoa(i)
		out[i] = entry("cn="+name+",ou=people,dc=example,dc=com", "cn", name, "mail", name+"@example.com")
	}
	return out
}

func names(cs []*contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
