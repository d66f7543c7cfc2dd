package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout  = 15 * time.Second
	defaultWriteWait  = 30 * time.Second
	closeWriteTimeout = time.Second
	maxFrameSize      = 32 << 20
)

type libraryDialer struct{}

func (libraryDialer) Strategy() Strategy { return StrategyLibrary }

func (libraryDialer) Dial(ctx context.Context, url string, header http.Header, h Handlers) (Socket, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dial websocket: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	s := &librarySocket{conn: conn, h: h}
	s.open.Store(true)
	h.open()
	go s.readLoop()
	return s, nil
}

type librarySocket struct {
	conn *websocket.Conn
	h    Handlers

	writeMu   sync.Mutex
	open      atomic.Bool
	local     atomic.Bool
	closeOnce sync.Once
}

func (s *librarySocket) Send(ctx context.Context, frame []byte) error {
	if !s.open.Load() {
		return ErrNotOpen
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *librarySocket) Close() error {
	s.local.Store(true)
	if s.open.Load() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout))
		s.writeMu.Unlock()
	}
	s.finish(nil)
	return nil
}

func (s *librarySocket) readLoop() {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.h.message(data)
	}
}

func (s *librarySocket) finish(err error) {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		s.conn.Close()

		if s.local.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = nil
		}
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.h.error(err)
		}
		s.h.close(err)
	})
}
