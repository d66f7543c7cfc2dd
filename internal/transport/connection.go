package transport

import (
	"context"
	"net/http"
	"sync"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is one duplex channel to one endpoint. It owns its socket;
// once closed or failed it never reopens.
type Connection struct {
	URL    string
	Header http.Header

	mu     sync.Mutex
	state  State
	socket Socket
	done   chan struct{}
}

func newConnection(url string, header http.Header) *Connection {
	return &Connection{
		URL:    url,
		Header: header,
		state:  StateConnecting,
		done:   make(chan struct{}),
	}
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the connection leaves the open state for good.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// attach records a dialed socket. If the socket already reported close the
// connection stays closed and the socket is released.
func (c *Connection) attach(s Socket) {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		s.Close()
		return
	}
	c.socket = s
	c.state = StateOpen
	c.mu.Unlock()
}

func (c *Connection) fail() {
	c.finish(StateFailed)
}

// markClosed is called from the socket's close handler.
func (c *Connection) markClosed() {
	c.finish(StateClosed)
}

func (c *Connection) finish(to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed || c.state == StateFailed {
		return
	}
	c.state = to
	close(c.done)
}

func (c *Connection) send(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	s, state := c.socket, c.state
	c.mu.Unlock()

	if state != StateOpen || s == nil {
		return ErrNotOpen
	}
	return s.Send(ctx, frame)
}

// close closes the socket and marks the connection closed. Idempotent.
func (c *Connection) close() error {
	c.mu.Lock()
	s := c.socket
	c.socket = nil
	c.mu.Unlock()

	c.finish(StateClosed)
	if s != nil {
		return s.Close()
	}
	return nil
}
