package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

type edgeDialer struct{}

func (edgeDialer) Strategy() Strategy { return StrategyEdge }

func (edgeDialer) Dial(ctx context.Context, url string, header http.Header, h Handlers) (Socket, error) {
	cfg, err := websocket.NewConfig(url, HTTPURL(url))
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	if header != nil {
		cfg.Header = header.Clone()
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	ws.MaxPayloadBytes = maxFrameSize

	s := &edgeSocket{ws: ws, h: h}
	s.open.Store(true)
	h.open()
	go s.readLoop()
	return s, nil
}

type edgeSocket struct {
	ws *websocket.Conn
	h  Handlers

	writeMu   sync.Mutex
	open      atomic.Bool
	local     atomic.Bool
	closeOnce sync.Once
}

func (s *edgeSocket) Send(ctx context.Context, frame []byte) error {
	if !s.open.Load() {
		return ErrNotOpen
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}
	_ = s.ws.SetWriteDeadline(deadline)
	return websocket.Message.Send(s.ws, string(frame))
}

func (s *edgeSocket) Close() error {
	s.local.Store(true)
	s.finish(nil)
	return nil
}

func (s *edgeSocket) readLoop() {
	for {
		var frame []byte
		if err := websocket.Message.Receive(s.ws, &frame); err != nil {
			s.finish(err)
			return
		}
		s.h.message(frame)
	}
}

func (s *edgeSocket) finish(err error) {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		s.ws.Close()

		if s.local.Load() || errors.Is(err, io.EOF) {
			err = nil
		}
		if err != nil {
			s.h.error(err)
		}
		s.h.close(err)
	})
}
