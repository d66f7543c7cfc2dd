package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

// Session correlates requests with responses over a Client. Request ids come
// from one counter per session, so they stay unique within every connection
// the session opens.
type Session struct {
	client *Client
	logger *slog.Logger
	nextID atomic.Int64

	onNotification func(*jsonrpc.Envelope)
	onError        func(error)

	mu      sync.Mutex
	pending map[string]*pendingCall
}

type pendingCall struct {
	ch chan *jsonrpc.Envelope
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotificationHandler receives server notifications.
func WithNotificationHandler(fn func(*jsonrpc.Envelope)) SessionOption {
	return func(s *Session) {
		s.onNotification = fn
	}
}

// WithErrorHandler receives invalid frames and socket errors.
func WithErrorHandler(fn func(error)) SessionOption {
	return func(s *Session) {
		s.onError = fn
	}
}

// NewSession builds a Client from opts and correlates its traffic. The
// message and error callbacks in opts are replaced by the session's own;
// OnClose is kept.
func NewSession(opts Options, sessionOpts ...SessionOption) *Session {
	s := &Session{
		pending: make(map[string]*pendingCall),
	}
	for _, opt := range sessionOpts {
		opt(s)
	}

	opts.OnMessage = func(_ *Connection, env *jsonrpc.Envelope) { s.dispatch(env) }
	opts.OnError = func(_ *Connection, err error) {
		if s.onError != nil {
			s.onError(err)
		}
	}

	s.client = NewClient(opts)
	s.logger = s.client.logger
	return s
}

// Client returns the underlying client transport.
func (s *Session) Client() *Client {
	return s.client
}

// Open dials the endpoint if no connection is open.
func (s *Session) Open(ctx context.Context) error {
	_, err := s.client.Open(ctx)
	return err
}

// Call sends a request and waits for its response. A JSON-RPC error
// response is returned as *jsonrpc.Error. There is no built-in timeout;
// the caller's ctx bounds the wait.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := jsonrpc.NumberID(s.nextID.Add(1))
	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	key := string(id)
	call := &pendingCall{ch: make(chan *jsonrpc.Envelope, 1)}
	s.mu.Lock()
	s.pending[key] = call
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}()

	conn, err := s.client.send(ctx, req)
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-call.ch:
		return unwrapResponse(resp)
	case <-conn.Done():
		select {
		case resp := <-call.ch:
			return unwrapResponse(resp)
		default:
		}
		return nil, fmt.Errorf("%s %s: %w", method, conn.URL, ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func unwrapResponse(resp *jsonrpc.Envelope) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Notify sends a notification.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	env, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return s.client.Send(ctx, env)
}

// Close closes the connection. Waiting calls return ErrClosed.
func (s *Session) Close() error {
	return s.client.Close()
}

func (s *Session) dispatch(env *jsonrpc.Envelope) {
	switch {
	case env.IsResponse():
		if !env.HasID() {
			s.logger.Warn("error response without id", "error", env.Error)
			return
		}
		key := string(bytes.TrimSpace(env.ID))
		s.mu.Lock()
		call, ok := s.pending[key]
		s.mu.Unlock()
		if !ok {
			s.logger.Debug("dropping response for unknown id", "id", key)
			return
		}
		select {
		case call.ch <- env:
		default:
		}
	case env.IsRequest():
		go s.answerServerRequest(env)
	default:
		if s.onNotification != nil {
			s.onNotification(env)
		}
	}
}

// answerServerRequest replies to requests the server initiates. Only ping
// is supported; the rest get method-not-found.
func (s *Session) answerServerRequest(req *jsonrpc.Envelope) {
	var resp *jsonrpc.Envelope
	if req.Method == "ping" {
		resp = &jsonrpc.Envelope{JSONRPC: jsonrpc.Version, ID: req.ID, Result: json.RawMessage(`{}`)}
	} else {
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, "method not found: "+req.Method)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteWait)
	defer cancel()
	if err := s.client.Send(ctx, resp); err != nil {
		s.logger.Debug("replying to server request failed", "method", req.Method, "error", err)
	}
}
