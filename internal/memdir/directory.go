// Package memdir is an in-memory directory that answers search requests
// the way an LDAP server does, including server-side sorting, paged
// results and size limits. It backs the CLI's fixture mode and the
// query engine's end-to-end tests.
package memdir

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/logging"
)

// Errors returned when populating a Directory.
var (
	ErrEntryExists = errors.New("memdir: entry already exists")
	ErrEmptyDN     = errors.New("memdir: entry has no DN")
)

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPagingLimits bounds the paged searches kept open at once and how long
// an idle one survives.
func WithPagingLimits(maxStates int, timeout time.Duration) Option {
	return func(d *Directory) {
		if maxStates > 0 {
			d.pages.maxStates = maxStates
		}
		if timeout > 0 {
			d.pages.timeout = timeout
		}
	}
}

// WithSizeLimit sets an administrative limit on the entries returned by an
// unpaged search, applied when the request asks for more.
func WithSizeLimit(n int) Option {
	return func(d *Directory) { d.sizeLimit = n }
}

// Directory holds entries in insertion order. It is safe for concurrent
// use.
type Directory struct {
	mu      sync.RWMutex
	entries []*directory.Entry
	byDN    map[string]*directory.Entry

	pages     *pageManager
	sizeLimit int
	logger    logging.Logger
}

// New creates an empty directory.
func New(opts ...Option) *Directory {
	d := &Directory{
		byDN:   make(map[string]*directory.Entry),
		pages:  newPageManager(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add stores e. DNs are compared case-insensitively.
func (d *Directory) Add(e *directory.Entry) error {
	key := normalizeDN(e.DN)
	if key == "" {
		return ErrEmptyDN
	}
	if e.Attributes == nil {
		e.Attributes = directory.NewAttributes()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byDN[key]; ok {
		return ErrEntryExists
	}
	d.byDN[key] = e
	d.entries = append(d.entries, e)
	return nil
}

// Get returns the entry named dn.
func (d *Directory) Get(dn string) (*directory.Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byDN[normalizeDN(dn)]
	return e, ok
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// normalizeDN folds case and drops spaces around RDN separators.
func normalizeDN(dn string) string {
	parts := strings.Split(strings.TrimSpace(dn), ",")
	for i, p := range parts {
		attr, value, ok := strings.Cut(p, "=")
		if !ok {
			parts[i] = directory.Fold(strings.TrimSpace(p))
			continue
		}
		parts[i] = directory.Fold(strings.TrimSpace(attr)) + "=" + directory.Fold(strings.TrimSpace(value))
	}
	if len(parts) == 1 && parts[0] == "" {
		return ""
	}
	return strings.Join(parts, ",")
}

// parentDN returns the normalized parent of a normalized DN.
func parentDN(dn string) string {
	if i := strings.IndexByte(dn, ','); i >= 0 {
		return dn[i+1:]
	}
	return ""
}
