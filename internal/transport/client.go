package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

// Options configures a Client.
type Options struct {
	// URL is the ws(s) endpoint. http(s) URLs are converted.
	URL string

	// Header is sent with every handshake.
	Header http.Header

	// Dialer defaults to SelectDialer(CurrentRuntime()).
	Dialer Dialer

	// Retry defaults to DefaultRetryPolicy().
	Retry RetryPolicy

	Logger *slog.Logger

	// OnMessage receives every valid inbound envelope, in arrival order.
	OnMessage func(conn *Connection, env *jsonrpc.Envelope)

	// OnError receives frames that failed validation (*jsonrpc.ProtocolError)
	// and socket-level errors. The connection stays open after a bad frame.
	OnError func(conn *Connection, err error)

	// OnClose fires once per connection when its socket closes.
	OnClose func(conn *Connection, err error)
}

// Client maintains at most one Connection to one endpoint. Send opens a
// connection on demand; a closed connection is replaced only after Close.
type Client struct {
	url    string
	header http.Header
	dialer Dialer
	retry  RetryPolicy
	logger *slog.Logger

	onMessage func(*Connection, *jsonrpc.Envelope)
	onError   func(*Connection, error)
	onClose   func(*Connection, error)

	mu   sync.Mutex
	conn *Connection
}

// NewClient creates a client. No socket is opened until Open or Send.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = SelectDialer(CurrentRuntime())
	}
	url := WebSocketURL(opts.URL)
	return &Client{
		url:       url,
		header:    opts.Header,
		dialer:    dialer,
		retry:     opts.Retry.withDefaults(),
		logger:    logger.With("url", url, "socket", string(dialer.Strategy())),
		onMessage: opts.OnMessage,
		onError:   opts.OnError,
		onClose:   opts.OnClose,
	}
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string {
	return c.url
}

// Connection returns the current connection, or nil.
func (c *Client) Connection() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Open returns the open connection, dialing one if there is none.
func (c *Client) Open(ctx context.Context) (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.State() == StateOpen {
		return c.conn, nil
	}
	if c.conn != nil {
		c.conn.close()
		c.conn = nil
	}
	return c.openLocked(ctx)
}

func (c *Client) openLocked(ctx context.Context) (*Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxRetries; attempt++ {
		conn := newConnection(c.url, c.header)
		socket, err := c.dialer.Dial(ctx, c.url, c.header, c.handlers(conn))
		if err == nil {
			conn.attach(socket)
			c.conn = conn
			c.logger.Debug("connection open", "attempt", attempt)
			return conn, nil
		}

		conn.fail()
		lastErr = err
		c.logger.Warn("connect attempt failed", "attempt", attempt, "max_attempts", c.retry.MaxRetries, "error", err)

		if attempt == c.retry.MaxRetries {
			break
		}
		if serr := sleepContext(ctx, c.retry.Backoff(attempt)); serr != nil {
			return nil, &ConnectError{URL: c.url, Attempts: attempt, Err: serr}
		}
	}
	return nil, &ConnectError{URL: c.url, Attempts: c.retry.MaxRetries, Err: lastErr}
}

func (c *Client) handlers(conn *Connection) Handlers {
	return Handlers{
		OnMessage: func(frame []byte) {
			env, err := jsonrpc.Parse(frame)
			if err != nil {
				c.logger.Warn("dropping invalid frame", "error", err)
				if c.onError != nil {
					c.onError(conn, err)
				}
				return
			}
			if c.onMessage != nil {
				c.onMessage(conn, env)
			}
		},
		OnError: func(err error) {
			c.logger.Debug("socket error", "error", err)
			if c.onError != nil {
				c.onError(conn, err)
			}
		},
		OnClose: func(err error) {
			conn.markClosed()
			c.logger.Debug("connection closed", "error", err)
			if c.onClose != nil {
				c.onClose(conn, err)
			}
		},
	}
}

// Send writes env on the current connection, opening one if none exists.
func (c *Client) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	_, err := c.send(ctx, env)
	return err
}

func (c *Client) send(ctx context.Context, env *jsonrpc.Envelope) (*Connection, error) {
	frame, err := jsonrpc.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		conn, err = c.openLocked(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	if conn.State() != StateOpen {
		return conn, &SendError{URL: c.url, Err: ErrNotOpen}
	}
	if err := conn.send(ctx, frame); err != nil {
		return conn, &SendError{URL: c.url, Err: err}
	}
	return conn, nil
}

// Close closes the current connection, if any. Safe to call repeatedly.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.close()
}
