package memdir

import (
	"encoding/binary"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
)

// Paging errors.
var (
	// ErrInvalidCookie is returned when the paging cookie is invalid or expired.
	ErrInvalidCookie = errors.New("memdir: invalid or expired paging cookie")
	// ErrCookieMismatch is returned when the cookie doesn't match the search parameters.
	ErrCookieMismatch = errors.New("memdir: cookie does not match search parameters")
	// ErrTooManySearches is returned when no more paged searches can be opened.
	ErrTooManySearches = errors.New("memdir: maximum number of paged searches reached")
)

const (
	defaultStateTimeout = 5 * time.Minute
	defaultMaxStates    = 1000
	cookieVersion       = 1
)

// pagedSearch is the server-side state behind one cookie.
type pagedSearch struct {
	baseDN       string
	scope        ldap.SearchScope
	filter       string
	typesOnly    bool
	position     int
	results      []*directory.Entry
	lastAccessed time.Time
}

type pageManager struct {
	mu        sync.Mutex
	states    map[string]*pagedSearch
	timeout   time.Duration
	maxStates int
	now       func() time.Time
}

func newPageManager() *pageManager {
	return &pageManager{
		states:    make(map[string]*pagedSearch),
		timeout:   defaultStateTimeout,
		maxStates: defaultMaxStates,
		now:       time.Now,
	}
}

// create stores a search and returns its cookie.
func (m *pageManager) create(req *ldap.SearchRequest, results []*directory.Entry, position int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.states) >= m.maxStates {
		m.expireLocked()
		if len(m.states) >= m.maxStates {
			return nil, ErrTooManySearches
		}
	}

	id := uuid.NewString()
	m.states[id] = &pagedSearch{
		baseDN:       normalizeDN(req.BaseObject),
		scope:        req.Scope,
		filter:       req.Filter,
		typesOnly:    req.TypesOnly,
		position:     position,
		results:      results,
		lastAccessed: m.now(),
	}
	return encodeCookie(id), nil
}

// lookup returns the search behind cookie after checking it belongs to req.
func (m *pageManager) lookup(cookie []byte, req *ldap.SearchRequest) (string, *pagedSearch, error) {
	id, err := decodeCookie(cookie)
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return "", nil, ErrInvalidCookie
	}
	if m.now().Sub(s.lastAccessed) > m.timeout {
		delete(m.states, id)
		return "", nil, ErrInvalidCookie
	}
	if s.baseDN != normalizeDN(req.BaseObject) || s.scope != req.Scope || s.filter != req.Filter || s.typesOnly != req.TypesOnly {
		return "", nil, ErrCookieMismatch
	}
	s.lastAccessed = m.now()
	return id, s, nil
}

// next returns up to size entries and advances the search. The state is
// dropped once it is drained.
func (m *pageManager) next(id string, s *pagedSearch, size int) ([]*directory.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := min(s.position+size, len(s.results))
	page := slices.Clone(s.results[s.position:end])
	s.position = end
	if end >= len(s.results) {
		delete(m.states, id)
		return page, false
	}
	return page, true
}

func (m *pageManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
}

func (m *pageManager) open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *pageManager) expireLocked() {
	now := m.now()
	for id, s := range m.states {
		if now.Sub(s.lastAccessed) > m.timeout {
			delete(m.states, id)
		}
	}
}

// encodeCookie lays a cookie out as [version(1)] [id_length(2)] [id(n)].
func encodeCookie(id string) []byte {
	cookie := make([]byte, 3+len(id))
	cookie[0] = cookieVersion
	binary.BigEndian.PutUint16(cookie[1:3], uint16(len(id)))
	copy(cookie[3:], id)
	return cookie
}

func decodeCookie(cookie []byte) (string, error) {
	if len(cookie) < 3 || cookie[0] != cookieVersion {
		return "", ErrInvalidCookie
	}
	n := int(binary.BigEndian.Uint16(cookie[1:3]))
	if len(cookie) < 3+n {
		return "", ErrInvalidCookie
	}
	return string(cookie[3 : 3+n]), nil
}
