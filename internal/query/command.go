package query

import (
	"bytes"
	"context"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/logging"
	"github.com/KilimcininKorOglu/dirquery/internal/mapping"
	"github.com/KilimcininKorOglu/dirquery/internal/metrics"
	"github.com/KilimcininKorOglu/dirquery/internal/tracing"
)

// DefaultPageSize is the page size used when neither the plan nor the
// command sets one.
const DefaultPageSize = 500

// State is the position of a Command in its paging state machine.
type State int

const (
	// StateNotStarted is the state before the first request.
	StateNotStarted State = iota
	// StateAwaitingPage means the server holds more pages.
	StateAwaitingPage
	// StateExhausted means no further request will be sent.
	StateExhausted
	// StateFaulted means the query stopped on an error.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateAwaitingPage:
		return "awaiting page"
	case StateExhausted:
		return "exhausted"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// PagingCursor is the continuation of a paged search.
type PagingCursor struct {
	Cookie   []byte
	PageSize int
}

// CommandOption configures a Command.
type CommandOption func(*Command)

// WithDefaultPageSize sets the page size for plans that do not set one.
func WithDefaultPageSize(n int) CommandOption {
	return func(c *Command) {
		if n > 0 {
			c.defaultPageSize = n
		}
	}
}

// WithLogger sets the logger. Each command logs under its own request ID.
func WithLogger(l logging.Logger) CommandOption {
	return func(c *Command) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request and result metrics in m.
func WithMetrics(m *metrics.Collector) CommandOption {
	return func(c *Command) { c.metrics = m }
}

// WithTracer sets the tracer used for request spans. The default comes
// from the global tracer provider.
func WithTracer(t trace.Tracer) CommandOption {
	return func(c *Command) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Command executes one plan against one connection. It is not safe for
// concurrent use and runs once: Execute, Count and LongCount each start it.
type Command struct {
	conn Connection
	opts *Options

	defaultPageSize int
	logger          logging.Logger
	metrics         *metrics.Collector
	tracer          trace.Tracer

	started    bool
	state      State
	cursor     *PagingCursor
	err        error
	requests   int
	received   int
	references []string
}

// NewCommand creates a command for plan opts over conn.
func NewCommand(conn Connection, opts *Options, copts ...CommandOption) *Command {
	c := &Command{
		conn:            conn,
		opts:            opts,
		defaultPageSize: DefaultPageSize,
		logger:          logging.NewNop(),
		tracer:          tracing.Tracer(),
	}
	for _, o := range copts {
		o(c)
	}
	c.logger = c.logger.WithRequestID(logging.GenerateRequestID()).WithFields(
		"shape", opts.shape.String(),
		"base_dn", opts.baseDN,
	)
	return c
}

// State returns the current paging state.
func (c *Command) State() State { return c.state }

// Cursor returns the pending continuation, or nil unless the state is
// StateAwaitingPage.
func (c *Command) Cursor() *PagingCursor { return c.cursor }

// Requests returns the number of search requests sent so far.
func (c *Command) Requests() int { return c.requests }

// References returns the continuation references seen so far.
func (c *Command) References() []string { return c.references }

// Err returns the fault that moved the command to StateFaulted.
func (c *Command) Err() error { return c.err }

// Execute starts the query and returns its lazy results. Count plans yield
// a single int or int64.
func (c *Command) Execute(ctx context.Context) *Results {
	transformer := c.opts.MakeTransformer()
	r := &Results{cmd: c, transformer: transformer}
	if err := c.start(); err != nil {
		r.err = err
		return r
	}

	switch c.opts.countMode {
	case CountInt, CountLong:
		done := false
		r.next = func(ctx context.Context) (any, bool, error) {
			if done {
				return nil, false, nil
			}
			done = true
			n, err := c.count(ctx)
			if err != nil {
				return nil, false, err
			}
			if c.opts.countMode == CountLong {
				return n, true, nil
			}
			v, err := narrowCount(n, c.opts.countMode)
			if err != nil {
				return nil, false, err
			}
			return v, true, nil
		}
		return r
	}

	s := c.newStream(c.opts.attributes)
	shape := c.opts.shape.String()
	r.next = func(ctx context.Context) (any, bool, error) {
		e, ok, err := s.next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		v, err := transformer.Transform(directory.FromResultEntry(e))
		if err != nil {
			c.fault(err)
			return nil, false, err
		}
		c.metrics.ObserveResult(shape)
		return v, true, nil
	}
	return r
}

// Count runs the query and returns the number of matching entries after
// skip and take. It fails with ErrCountOverflow above math.MaxInt32
// unless the plan is a long count.
func (c *Command) Count(ctx context.Context) (int, error) {
	if err := c.start(); err != nil {
		return 0, err
	}
	n, err := c.count(ctx)
	if err != nil {
		return 0, err
	}
	return narrowCount(n, c.opts.countMode)
}

func narrowCount(n int64, mode CountMode) (int, error) {
	if n > math.MaxInt32 && mode != CountLong {
		return 0, ErrCountOverflow
	}
	return int(n), nil
}

// LongCount is Count without the int32 bound.
func (c *Command) LongCount(ctx context.Context) (int64, error) {
	if err := c.start(); err != nil {
		return 0, err
	}
	return c.count(ctx)
}

func (c *Command) start() error {
	if c.started {
		return ErrAlreadyExecuted
	}
	c.started = true
	if c.opts.yieldNoResults {
		c.state = StateExhausted
		c.logger.Debug("query yields no results")
	}
	return nil
}

// count never transforms entries and asks for no attributes.
func (c *Command) count(ctx context.Context) (int64, error) {
	s := c.newStream([]string{ldap.NoAttributes})
	var n int64
	for {
		_, ok, err := s.next(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// single reports whether the whole query fits one unpaged request.
func (c *Command) single() bool {
	if c.opts.withoutPaging {
		return true
	}
	take, bounded := c.opts.Take()
	return bounded && int64(c.opts.skip)+int64(take) <= int64(c.pageSize())
}

func (c *Command) pageSize() int {
	if c.opts.pageSize > 0 {
		return c.opts.pageSize
	}
	return c.defaultPageSize
}

// limit is the number of entries the query can use, or -1.
func (c *Command) limit() int64 {
	take, bounded := c.opts.Take()
	if !bounded {
		return -1
	}
	return int64(c.opts.skip) + int64(take)
}

func (c *Command) request(attrs []string) (*ldap.SearchRequest, error) {
	req := &ldap.SearchRequest{
		BaseObject:   c.opts.baseDN,
		Scope:        c.opts.scope,
		DerefAliases: ldap.DerefNever,
		TimeLimit:    c.opts.timeLimit,
		Filter:       c.opts.filter,
		Attributes:   attrs,
	}

	if len(c.opts.sort) > 0 {
		ctrl, err := ldap.NewSortControl(c.opts.sort...).ToLDAPControl()
		if err != nil {
			return nil, err
		}
		req.Controls = append(req.Controls, ctrl)
	}
	req.Controls = append(req.Controls, c.opts.controls...)

	if c.single() {
		if limit := c.limit(); limit > 0 {
			req.SizeLimit = int(min(limit, math.MaxInt32))
		}
		return req, nil
	}

	paged := &ldap.PagedResultsControl{Size: int32(c.pageSize())}
	if c.cursor != nil {
		paged.Size = int32(c.cursor.PageSize)
		paged.Cookie = c.cursor.Cookie
	}
	ctrl, err := paged.ToLDAPControl()
	if err != nil {
		return nil, err
	}
	req.Controls = append(req.Controls, ctrl)
	return req, nil
}

// fetch sends the next request and advances the state machine.
func (c *Command) fetch(ctx context.Context, attrs []string) ([]*ldap.SearchResultEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, c.fault(err)
	}
	req, err := c.request(attrs)
	if err != nil {
		return nil, c.fault(err)
	}

	mode := metrics.ModePaged
	if c.single() {
		mode = metrics.ModeSingle
	}
	c.requests++
	ctx, span := c.tracer.Start(ctx, "dirquery.search", trace.WithAttributes(
		attribute.String("ldap.base_dn", req.BaseObject),
		attribute.String("ldap.scope", req.Scope.String()),
		attribute.String("ldap.filter", req.Filter),
		attribute.String("dirquery.shape", c.opts.shape.String()),
		attribute.String("dirquery.mode", mode),
		attribute.Int("dirquery.page", c.requests),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.conn.SendRequest(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		err = &ConnectionError{Err: err}
	} else {
		err = c.advance(req, resp)
	}

	entries := 0
	if resp != nil {
		entries = len(resp.Entries)
	}
	c.metrics.ObserveRequest(c.opts.shape.String(), mode, elapsed, entries, err)
	span.SetAttributes(attribute.Int("dirquery.entries", entries))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.fault(err)
	}

	c.logger.Debug("page fetched",
		"page", c.requests,
		"entries", entries,
		"mode", mode,
		"state", c.state.String(),
		"elapsed", elapsed.String(),
	)
	return resp.Entries, nil
}

// advance applies one response to the state machine.
func (c *Command) advance(req *ldap.SearchRequest, resp *ldap.SearchResponse) error {
	if err := resp.Err(); err != nil {
		if !(req.SizeLimit > 0 && resp.Result.ResultCode == ldap.ResultSizeLimitExceeded) {
			return err
		}
	}
	c.received += len(resp.Entries)
	c.references = append(c.references, resp.References...)

	if len(c.opts.sort) > 0 {
		if sr, err := resp.Sort(); err == nil && sr != nil && sr.ResultCode != ldap.ResultSuccess {
			c.logger.Warn("server did not sort results",
				"result", sr.ResultCode.String(),
				"attribute", sr.AttributeType,
			)
		}
	}

	if c.single() {
		c.exhaust()
		return nil
	}

	paged, err := resp.PagedResults()
	if err != nil {
		return &ProtocolViolationError{OID: ldap.PagedResultsOID, Reason: "is malformed", Err: err}
	}
	if paged == nil {
		return &ProtocolViolationError{OID: ldap.PagedResultsOID, Reason: "is missing from the response"}
	}

	limit := c.limit()
	if len(paged.Cookie) == 0 || (limit >= 0 && int64(c.received) >= limit) {
		c.exhaust()
		return nil
	}
	c.state = StateAwaitingPage
	c.cursor = &PagingCursor{Cookie: bytes.Clone(paged.Cookie), PageSize: c.pageSize()}
	return nil
}

func (c *Command) exhaust() {
	c.state = StateExhausted
	c.cursor = nil
}

// fault moves the command to StateFaulted and returns err.
func (c *Command) fault(err error) error {
	if c.state == StateFaulted {
		return c.err
	}
	c.state = StateFaulted
	c.cursor = nil
	c.err = err
	c.metrics.ObserveFault(faultKind(err))
	c.logger.Error("query faulted", "page", c.requests, "error", err)
	return err
}

func faultKind(err error) string {
	var (
		ce *ConnectionError
		pv *ProtocolViolationError
		re *ldap.ResultError
		cv *mapping.ConversionError
	)
	switch {
	case errors.As(err, &ce):
		return "connection"
	case errors.As(err, &pv):
		return "protocol"
	case errors.As(err, &re):
		return "result"
	case errors.As(err, &cv):
		return "conversion"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// stream pulls raw entries page by page, applying skip and take. Pages are
// requested only when the previous one is drained.
type stream struct {
	cmd     *Command
	attrs   []string
	page    []*ldap.SearchResultEntry
	pos     int
	skipped int
	yielded int
}

func (c *Command) newStream(attrs []string) *stream {
	return &stream{cmd: c, attrs: attrs}
}

func (s *stream) next(ctx context.Context) (*ldap.SearchResultEntry, bool, error) {
	c := s.cmd
	for {
		if take, bounded := c.opts.Take(); bounded && s.yielded >= take {
			if c.state != StateFaulted {
				c.exhaust()
			}
			return nil, false, nil
		}
		if s.pos < len(s.page) {
			e := s.page[s.pos]
			s.pos++
			if s.skipped < c.opts.skip {
				s.skipped++
				continue
			}
			s.yielded++
			return e, true, nil
		}

		switch c.state {
		case StateExhausted:
			return nil, false, nil
		case StateFaulted:
			return nil, false, c.err
		}
		page, err := c.fetch(ctx, s.attrs)
		if err != nil {
			return nil, false, err
		}
		s.page, s.pos = page, 0
	}
}
