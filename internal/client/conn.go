// Package client is an LDAP v3 client that can run typed queries: it binds
// with a simple bind and sends one search at a time.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/dirquery/internal/ber"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/logging"
)

// MaxPacketSize is the default limit on a single received message.
const MaxPacketSize = 16 * 1024 * 1024

// Client errors.
var (
	ErrClosed             = errors.New("client: connection closed")
	ErrNoAddress          = errors.New("client: no address configured")
	ErrUnexpectedResponse = errors.New("client: unexpected response")
	ErrDisconnected       = errors.New("client: server sent notice of disconnection")
)

// Config describes how to reach and authenticate to a directory.
type Config struct {
	// Address is host:port. Without a port 389 is used, or 636 with TLS.
	Address string
	// TLS dials LDAPS.
	TLS       bool
	TLSConfig *TLSConfig

	BindDN   string
	Password string

	DialTimeout    time.Duration
	RequestTimeout time.Duration
	MaxPacketSize  int
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestTimeout bounds each request that has no context deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Conn) { c.timeout = d }
}

// WithMaxPacketSize limits the size of a received message.
func WithMaxPacketSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxPacket = n
		}
	}
}

// Conn is an LDAP connection. Requests are serialized; it implements
// query.Connection.
type Conn struct {
	mu        sync.Mutex
	conn      net.Conn
	messageID int
	closed    bool

	logger    logging.Logger
	timeout   time.Duration
	maxPacket int
}

// Dial connects to cfg.Address and binds when cfg.BindDN is set.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Conn, error) {
	if cfg.Address == "" {
		return nil, ErrNoAddress
	}
	host, port, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		host, port = cfg.Address, "389"
		if cfg.TLS {
			port = "636"
		}
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	var nc net.Conn
	if cfg.TLS {
		tlsCfg, err := LoadTLSConfig(cfg.TLSConfig, host)
		if err != nil {
			return nil, err
		}
		nc, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("client: dial %s: %w", addr, err)
		}
	} else {
		nc, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("client: dial %s: %w", addr, err)
		}
	}

	if cfg.RequestTimeout > 0 {
		opts = append([]Option{WithRequestTimeout(cfg.RequestTimeout)}, opts...)
	}
	if cfg.MaxPacketSize > 0 {
		opts = append([]Option{WithMaxPacketSize(cfg.MaxPacketSize)}, opts...)
	}
	c := NewConn(nc, opts...)
	c.logger.Debug("connected", "address", addr, "tls", cfg.TLS)

	if cfg.BindDN != "" || cfg.Password != "" {
		if err := c.Bind(ctx, cfg.BindDN, cfg.Password); err != nil {
			_ = nc.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:      nc,
		logger:    logging.NewNop(),
		maxPacket: MaxPacketSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind performs a simple bind.
func (c *Conn) Bind(ctx context.Context, dn, password string) error {
	req := ldap.NewSimpleBind(dn, []byte(password))
	data, err := req.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.send(ctx, ldap.ApplicationBindRequest, data, nil)
	if err != nil {
		return err
	}
	msg, err := c.read(id)
	if err != nil {
		return err
	}
	if msg.OperationType() != ldap.ApplicationBindResponse {
		return fmt.Errorf("%w: %s to bind", ErrUnexpectedResponse, msg.OperationType())
	}
	resp, err := ldap.ParseBindResponse(msg.Operation.Data)
	if err != nil {
		return err
	}
	if err := resp.Err(ldap.ApplicationBindRequest); err != nil {
		c.logger.Warn("bind failed", "dn", dn, "result", resp.ResultCode.String())
		return err
	}
	c.logger.Debug("bound", "dn", dn)
	return nil
}

// SendRequest sends req and collects the response up to SearchResultDone.
// A non-success result is reported in the response, not as an error.
func (c *Conn) SendRequest(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResponse, error) {
	data, err := req.Encode()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.send(ctx, ldap.ApplicationSearchRequest, data, req.Controls)
	if err != nil {
		return nil, err
	}

	resp := &ldap.SearchResponse{}
	for {
		msg, err := c.read(id)
		if err != nil {
			return nil, err
		}
		switch msg.OperationType() {
		case ldap.ApplicationSearchResultEntry:
			e, err := ldap.ParseSearchResultEntry(msg.Operation.Data)
			if err != nil {
				return nil, err
			}
			resp.Entries = append(resp.Entries, e)
		case ldap.ApplicationSearchResultReference:
			uris, err := ldap.ParseSearchResultReference(msg.Operation.Data)
			if err != nil {
				return nil, err
			}
			resp.References = append(resp.References, uris...)
		case ldap.ApplicationSearchResultDone:
			done, err := ldap.ParseSearchResultDone(msg.Operation.Data)
			if err != nil {
				return nil, err
			}
			resp.Result = done.LDAPResult
			resp.Controls = msg.Controls
			return resp, nil
		default:
			return nil, fmt.Errorf("%w: %s to search", ErrUnexpectedResponse, msg.OperationType())
		}
	}
}

// Close sends an unbind request and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	_, _ = c.send(context.Background(), ldap.ApplicationUnbindRequest, nil, nil)
	c.closed = true
	return c.conn.Close()
}

// send writes one request and returns its message ID. c.mu must be held.
func (c *Conn) send(ctx context.Context, tag int, data []byte, controls []ldap.Control) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	c.messageID++
	if c.messageID > ldap.MaxMessageID {
		c.messageID = 1
	}
	packet, err := ldap.NewMessage(c.messageID, tag, data, controls...).Encode()
	if err != nil {
		return 0, err
	}
	if _, err := c.conn.Write(packet); err != nil {
		return 0, err
	}
	return c.messageID, nil
}

// read returns the next message for id. Messages for other IDs are
// dropped; an unsolicited notice ends the connection.
func (c *Conn) read(id int) (*ldap.LDAPMessage, error) {
	for {
		packet, err := ber.ReadPacket(c.conn, c.maxPacket)
		if err != nil {
			return nil, err
		}
		msg, err := ldap.ParseLDAPMessage(packet)
		if err != nil {
			return nil, err
		}
		if msg.MessageID == 0 && msg.OperationType() == ldap.ApplicationExtendedResponse {
			c.closed = true
			_ = c.conn.Close()
			if done, err := ldap.ParseSearchResultDone(msg.Operation.Data); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrDisconnected, done.ResultCode)
			}
			return nil, ErrDisconnected
		}
		if msg.MessageID != id {
			c.logger.Debug("dropping message for another request", "message_id", msg.MessageID)
			continue
		}
		return msg, nil
	}
}
