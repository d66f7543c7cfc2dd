package mux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

const (
	defaultWriteWait = 30 * time.Second
	closeWriteWait   = time.Second
	maxFrameSize     = 32 << 20
)

// Handler receives every valid inbound envelope. Envelopes that carried an
// id arrive with the composite id already substituted.
type Handler interface {
	HandleMessage(ctx context.Context, clientID string, env *jsonrpc.Envelope)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, clientID string, env *jsonrpc.Envelope)

func (f HandlerFunc) HandleMessage(ctx context.Context, clientID string, env *jsonrpc.Envelope) {
	f(ctx, clientID, env)
}

// Options configures a Multiplexer. All callbacks are optional.
type Options struct {
	Handler Handler
	Logger  *slog.Logger

	OnConnect    func(clientID string)
	OnDisconnect func(clientID string)
	// OnError receives malformed frames as *jsonrpc.ProtocolError. The
	// client stays connected.
	OnError func(clientID string, err error)

	// AllowedOrigins lists browser origins accepted besides same-origin
	// requests. Ignored when Upgrader is set.
	AllowedOrigins []string
	// Upgrader defaults to one that applies AllowedOrigins.
	Upgrader *websocket.Upgrader
	// NewClientID defaults to NewClientID.
	NewClientID func() string
}

// Multiplexer accepts many WebSocket clients and presents them to one
// upstream JSON-RPC peer as a single id space.
type Multiplexer struct {
	handler      Handler
	logger       *slog.Logger
	upgrader     *websocket.Upgrader
	newClientID  func() string
	onConnect    func(string)
	onDisconnect func(string)
	onError      func(string, error)

	mu      sync.Mutex
	clients map[string]*registration
	closed  bool
}

type registration struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex
	open    atomic.Bool
}

// New creates a multiplexer. Mount it as an http.Handler.
func New(opts Options) *Multiplexer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := opts.Upgrader
	if upgrader == nil {
		check := originChecker(opts.AllowedOrigins)
		upgrader = &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if check(r) {
					return true
				}
				logger.Warn("rejecting cross-origin client", "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
				return false
			},
		}
	}
	newID := opts.NewClientID
	if newID == nil {
		newID = NewClientID
	}
	return &Multiplexer{
		handler:      opts.Handler,
		logger:       logger,
		upgrader:     upgrader,
		newClientID:  newID,
		onConnect:    opts.OnConnect,
		onDisconnect: opts.OnDisconnect,
		onError:      opts.OnError,
		clients:      make(map[string]*registration),
	}
}

// ServeHTTP upgrades the request and serves the client until it goes away.
func (m *Multiplexer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(context.Background())
	reg := &registration{id: m.newClientID(), conn: conn, cancel: cancel}
	reg.open.Store(true)
	ctx = WithClientID(ctx, reg.id)

	if !m.register(reg) {
		cancel()
		reg.shutdown(websocket.CloseGoingAway, "server closing")
		return
	}
	m.logger.Debug("client connected", "client", reg.id, "remote", r.RemoteAddr)
	if m.onConnect != nil {
		m.onConnect(reg.id)
	}

	m.readLoop(ctx, reg)
}

func (m *Multiplexer) register(reg *registration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.clients[reg.id] = reg
	return true
}

func (m *Multiplexer) readLoop(ctx context.Context, reg *registration) {
	defer m.evict(reg.id)

	for {
		_, data, err := reg.conn.ReadMessage()
		if err != nil {
			reg.open.Store(false)
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, websocket.ErrCloseSent) {
				m.logger.Debug("client read failed", "client", reg.id, "error", err)
			}
			return
		}

		env, err := jsonrpc.Parse(data)
		if err != nil {
			m.logger.Warn("dropping invalid frame", "client", reg.id, "error", err)
			if m.onError != nil {
				m.onError(reg.id, err)
			}
			continue
		}
		if m.handler != nil {
			m.handler.HandleMessage(ctx, reg.id, rewriteInbound(reg.id, env))
		}
	}
}

// Send routes env to the client named by its composite id, restoring the
// client's original id. A client that is gone or not open is evicted and
// *RoutingError is returned; nothing is delivered to any other client.
// Every call ends with a sweep of registrations that are no longer open.
func (m *Multiplexer) Send(ctx context.Context, env *jsonrpc.Envelope) error {
	defer m.sweep()

	clientID, out, err := restoreOutbound(env)
	if err != nil {
		return &RoutingError{ID: string(env.ID), Err: err}
	}

	m.mu.Lock()
	closed := m.closed
	reg := m.clients[clientID]
	m.mu.Unlock()

	if closed {
		return &RoutingError{ClientID: clientID, ID: string(out.ID), Err: ErrClosed}
	}
	if reg == nil || !reg.open.Load() {
		m.evict(clientID)
		return &RoutingError{ClientID: clientID, ID: string(out.ID), Err: ErrUnknownClient}
	}

	frame, err := jsonrpc.Marshal(out)
	if err != nil {
		return &RoutingError{ClientID: clientID, ID: string(out.ID), Err: fmt.Errorf("marshal envelope: %w", err)}
	}
	if err := reg.write(ctx, frame); err != nil {
		reg.open.Store(false)
		m.evict(clientID)
		return &RoutingError{ClientID: clientID, ID: string(out.ID), Err: err}
	}
	return nil
}

// Broadcast is Send. It routes to the single client the envelope's id
// names; it does not fan out to every client.
func (m *Multiplexer) Broadcast(ctx context.Context, env *jsonrpc.Envelope) error {
	return m.Send(ctx, env)
}

// Clients returns the ids of registered clients, sorted.
func (m *Multiplexer) Clients() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close disconnects every client. Later connections are refused.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	regs := make([]*registration, 0, len(m.clients))
	for _, reg := range m.clients {
		regs = append(regs, reg)
	}
	m.mu.Unlock()

	for _, reg := range regs {
		reg.shutdown(websocket.CloseGoingAway, "server closing")
		m.evict(reg.id)
	}
	return nil
}

// evict removes a registration and fires OnDisconnect, once per client.
func (m *Multiplexer) evict(clientID string) {
	m.mu.Lock()
	reg, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	reg.cancel()
	reg.shutdown(websocket.CloseNormalClosure, "")
	m.logger.Debug("client disconnected", "client", clientID)
	if m.onDisconnect != nil {
		m.onDisconnect(clientID)
	}
}

func (m *Multiplexer) sweep() {
	m.mu.Lock()
	var stale []string
	for id, reg := range m.clients {
		if !reg.open.Load() {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.evict(id)
	}
}

func (r *registration) write(ctx context.Context, frame []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if !r.open.Load() {
		return ErrUnknownClient
	}
	deadline := time.Now().Add(defaultWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = r.conn.SetWriteDeadline(deadline)
	return r.conn.WriteMessage(websocket.TextMessage, frame)
}

// shutdown sends a close frame if the socket is still open, then closes it.
func (r *registration) shutdown(code int, reason string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.open.Swap(false) {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	}
	_ = r.conn.Close()
}

type clientIDKey struct{}

// WithClientID returns ctx carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the client id HandleMessage was invoked for.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok
}
