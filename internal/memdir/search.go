package memdir

import (
	"context"
	"errors"
	"strings"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/filter"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
)

// searchControls are the request controls the directory understands.
type searchControls struct {
	paging *ldap.PagedResultsControl
	sort   *ldap.SortControl
}

// SendRequest answers a search the way a server would. Failures the server
// would report are carried in the response result; only a cancelled ctx
// returns an error.
func (d *Directory) SendRequest(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &ldap.SearchResponse{Result: ldap.NewSuccessResult()}
	ctrls, result := parseControls(req.Controls)
	if result != nil {
		resp.Result = *result
		return resp, nil
	}

	if ctrls.paging != nil && len(ctrls.paging.Cookie) > 0 {
		d.continuePaged(req, ctrls, resp)
		d.logServed(req, resp)
		return resp, nil
	}

	matched, result := d.match(req)
	if result != nil {
		resp.Result = *result
		return resp, nil
	}

	if ctrls.sort != nil {
		sortEntries(matched, ctrls.sort.Keys)
		if ctrl, err := sortResponse(ctrls.sort.Keys).ToLDAPControl(); err == nil {
			resp.Controls = append(resp.Controls, ctrl)
		}
	}

	if ctrls.paging != nil {
		d.firstPage(req, ctrls.paging, matched, resp)
		d.logServed(req, resp)
		return resp, nil
	}

	if limit := d.effectiveSizeLimit(req.SizeLimit); limit > 0 && len(matched) > limit {
		matched = matched[:limit]
		resp.Result = ldap.NewErrorResult(ldap.ResultSizeLimitExceeded, "size limit exceeded")
	}
	resp.Entries = selectAll(matched, req)
	d.logServed(req, resp)
	return resp, nil
}

func (d *Directory) effectiveSizeLimit(requested int) int {
	switch {
	case d.sizeLimit <= 0:
		return requested
	case requested <= 0:
		return d.sizeLimit
	default:
		return min(requested, d.sizeLimit)
	}
}

func parseControls(controls []ldap.Control) (searchControls, *ldap.LDAPResult) {
	var sc searchControls
	for _, ctrl := range controls {
		switch ctrl.OID {
		case ldap.PagedResultsOID:
			p, err := ldap.ParsePagedResultsControl(ctrl)
			if err != nil || p.Size < 0 {
				r := ldap.NewErrorResult(ldap.ResultProtocolError, "malformed paged results control")
				return sc, &r
			}
			sc.paging = p
		case ldap.SortRequestOID:
			s, err := ldap.ParseSortControl(ctrl)
			if err != nil {
				r := ldap.NewErrorResult(ldap.ResultProtocolError, "malformed sort control")
				return sc, &r
			}
			sc.sort = s
		default:
			if ctrl.Criticality {
				r := ldap.NewErrorResult(ldap.ResultUnavailableCriticalExtension, "unsupported critical control "+ctrl.OID)
				return sc, &r
			}
		}
	}
	return sc, nil
}

// match returns the entries in scope that satisfy the request filter, in
// insertion order.
func (d *Directory) match(req *ldap.SearchRequest) ([]*directory.Entry, *ldap.LDAPResult) {
	f, err := parseFilter(req.Filter)
	if err != nil {
		r := ldap.NewErrorResult(ldap.ResultProtocolError, err.Error())
		return nil, &r
	}

	base := normalizeDN(req.BaseObject)
	evaluator := filter.NewEvaluator()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if base != "" && !d.baseExistsLocked(base) {
		r := ldap.NewErrorResult(ldap.ResultNoSuchObject, "no such object: "+req.BaseObject)
		return nil, &r
	}

	var matched []*directory.Entry
	for _, e := range d.entries {
		if !inScope(normalizeDN(e.DN), base, req.Scope) {
			continue
		}
		if f != nil && !evaluator.Evaluate(f, e) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

// baseExistsLocked accepts a base that names an entry or has entries below
// it, so fixtures need not carry every container.
func (d *Directory) baseExistsLocked(base string) bool {
	if _, ok := d.byDN[base]; ok {
		return true
	}
	suffix := "," + base
	for dn := range d.byDN {
		if strings.HasSuffix(dn, suffix) {
			return true
		}
	}
	return false
}

func parseFilter(s string) (*filter.Filter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return filter.Parse(s)
}

func inScope(dn, base string, scope ldap.SearchScope) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return dn == base
	case ldap.ScopeSingleLevel:
		return parentDN(dn) == base
	default:
		return base == "" || dn == base || strings.HasSuffix(dn, ","+base)
	}
}

func (d *Directory) firstPage(req *ldap.SearchRequest, paging *ldap.PagedResultsControl, matched []*directory.Entry, resp *ldap.SearchResponse) {
	size := int(paging.Size)
	total := len(matched)

	if size == 0 || total <= size {
		if size > 0 {
			resp.Entries = selectAll(matched, req)
		}
		addPagingControl(resp, total, nil)
		return
	}

	cookie, err := d.pages.create(req, matched, size)
	if err != nil {
		resp.Result = ldap.NewErrorResult(ldap.ResultBusy, err.Error())
		return
	}
	resp.Entries = selectAll(matched[:size], req)
	addPagingControl(resp, total, cookie)
}

func (d *Directory) continuePaged(req *ldap.SearchRequest, ctrls searchControls, resp *ldap.SearchResponse) {
	id, state, err := d.pages.lookup(ctrls.paging.Cookie, req)
	if err != nil {
		code := ldap.ResultProtocolError
		if errors.Is(err, ErrCookieMismatch) {
			code = ldap.ResultUnwillingToPerform
		}
		resp.Result = ldap.NewErrorResult(code, err.Error())
		return
	}

	// A zero size abandons the search.
	if ctrls.paging.Size == 0 {
		d.pages.remove(id)
		addPagingControl(resp, 0, nil)
		return
	}

	page, more := d.pages.next(id, state, int(ctrls.paging.Size))
	resp.Entries = selectAll(page, req)
	var cookie []byte
	if more {
		cookie = encodeCookie(id)
	}
	addPagingControl(resp, len(state.results), cookie)
}

func addPagingControl(resp *ldap.SearchResponse, estimate int, cookie []byte) {
	ctrl, err := (&ldap.PagedResultsControl{Size: int32(estimate), Cookie: cookie}).ToLDAPControl()
	if err != nil {
		resp.Result = ldap.NewErrorResult(ldap.ResultOperationsError, err.Error())
		return
	}
	resp.Controls = append(resp.Controls, ctrl)
}

func selectAll(entries []*directory.Entry, req *ldap.SearchRequest) []*ldap.SearchResultEntry {
	out := make([]*ldap.SearchResultEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Select(req.Attributes, req.TypesOnly))
	}
	return out
}

func (d *Directory) logServed(req *ldap.SearchRequest, resp *ldap.SearchResponse) {
	d.logger.Debug("search served",
		"base_dn", req.BaseObject,
		"scope", req.Scope.String(),
		"filter", req.Filter,
		"entries", len(resp.Entries),
		"result", resp.Result.ResultCode.String(),
	)
}
