package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	sockets  []*fakeSocket
}

func (d *fakeDialer) Strategy() Strategy { return StrategyLibrary }

func (d *fakeDialer) Dial(_ context.Context, _ string, _ http.Header, h Handlers) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	s := &fakeSocket{h: h}
	d.sockets = append(d.sockets, s)
	h.open()
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[len(d.sockets)-1]
}

type fakeSocket struct {
	h Handlers

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (s *fakeSocket) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotOpen
	}
	s.sent = append(s.sent, append([]byte(nil), frame...))
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.h.close(nil)
	return nil
}

func (s *fakeSocket) deliver(frame string) {
	s.h.message([]byte(frame))
}

func (s *fakeSocket) sentFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, f := range s.sent {
		out[i] = string(f)
	}
	return out
}

// newWSServer starts a gorilla websocket server; handle runs once per
// accepted connection.
func newWSServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
