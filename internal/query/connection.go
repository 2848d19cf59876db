package query

import (
	"context"

	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
)

// Connection sends one search request and returns everything the server
// answered with. Implementations return transport failures as errors and
// report LDAP result codes through the response.
type Connection interface {
	SendRequest(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error)
}

// ConnectionFunc adapts a function to Connection.
type ConnectionFunc func(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error)

// SendRequest calls f.
func (f ConnectionFunc) SendRequest(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error) {
	return f(ctx, req)
}
