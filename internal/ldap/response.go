package ldap

// SearchResponse gathers everything a server sent for one SearchRequest:
// the entries and continuation references in arrival order, the final
// result and the controls attached to the SearchResultDone message.
type SearchResponse struct {
	Entries    []*SearchResultEntry
	References []string
	Result     LDAPResult
	Controls   []Control
}

// Err reports a non-success result as a *ResultError.
func (r *SearchResponse) Err() error {
	return r.Result.Err(ApplicationSearchRequest)
}

// PagedResults returns the paged results response control, or nil when the
// server did not attach one.
func (r *SearchResponse) PagedResults() (*PagedResultsControl, error) {
	return FindPagedResultsControl(r.Controls)
}

// Sort returns the sort response control, or nil when absent.
func (r *SearchResponse) Sort() (*SortResponse, error) {
	ctrl, ok := FindControl(r.Controls, SortResponseOID)
	if !ok {
		return nil, nil
	}
	return ParseSortResponse(ctrl)
}
