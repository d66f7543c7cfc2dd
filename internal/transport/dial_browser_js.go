//go:build js && wasm

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall/js"
)

// browserDialer opens the host page's WebSocket. Browsers do not let scripts
// set handshake headers, so header is ignored.
type browserDialer struct{}

func (browserDialer) Strategy() Strategy { return StrategyBrowser }

func (browserDialer) Dial(ctx context.Context, url string, _ http.Header, h Handlers) (Socket, error) {
	ctor := js.Global().Get("WebSocket")
	if ctor.IsUndefined() {
		return nil, errors.New("WebSocket is not defined in this runtime")
	}

	s := &browserSocket{h: h}
	opened := make(chan struct{})
	failed := make(chan error, 1)

	s.ws = ctor.New(url)
	s.onOpen = js.FuncOf(func(js.Value, []js.Value) any {
		s.open.Store(true)
		close(opened)
		return nil
	})
	s.onMessage = js.FuncOf(func(_ js.Value, args []js.Value) any {
		data := args[0].Get("data")
		if data.Type() == js.TypeString {
			s.h.message([]byte(data.String()))
		}
		return nil
	})
	s.onError = js.FuncOf(func(js.Value, []js.Value) any {
		err := errors.New("websocket error")
		if !s.open.Load() {
			select {
			case failed <- err:
			default:
			}
			return nil
		}
		s.h.error(err)
		return nil
	})
	s.onClose = js.FuncOf(func(_ js.Value, args []js.Value) any {
		var err error
		if code := args[0].Get("code").Int(); code != 1000 && code != 1001 && !s.local.Load() {
			err = fmt.Errorf("websocket closed with code %d", code)
		}
		if !s.open.Load() {
			select {
			case failed <- errors.Join(errors.New("websocket closed during handshake"), err):
			default:
			}
		}
		s.finish(err)
		return nil
	})

	s.ws.Set("onopen", s.onOpen)
	s.ws.Set("onmessage", s.onMessage)
	s.ws.Set("onerror", s.onError)
	s.ws.Set("onclose", s.onClose)

	select {
	case <-opened:
		h.open()
		return s, nil
	case err := <-failed:
		s.release()
		return nil, fmt.Errorf("dial websocket: %w", err)
	case <-ctx.Done():
		s.local.Store(true)
		s.ws.Call("close")
		s.release()
		return nil, ctx.Err()
	}
}

type browserSocket struct {
	ws js.Value
	h  Handlers

	onOpen, onMessage, onError, onClose js.Func

	open        atomic.Bool
	local       atomic.Bool
	closeOnce   sync.Once
	releaseOnce sync.Once
}

func (s *browserSocket) Send(_ context.Context, frame []byte) error {
	if !s.open.Load() {
		return ErrNotOpen
	}
	s.ws.Call("send", string(frame))
	return nil
}

func (s *browserSocket) Close() error {
	s.local.Store(true)
	if s.open.Load() {
		s.ws.Call("close", 1000)
	}
	s.finish(nil)
	return nil
}

func (s *browserSocket) finish(err error) {
	s.closeOnce.Do(func() {
		wasOpen := s.open.Swap(false)
		s.release()
		if wasOpen {
			s.h.close(err)
		}
	})
}

func (s *browserSocket) release() {
	s.releaseOnce.Do(s.releaseFuncs)
}

func (s *browserSocket) releaseFuncs() {
	s.ws.Set("onopen", js.Null())
	s.ws.Set("onmessage", js.Null())
	s.ws.Set("onerror", js.Null())
	s.ws.Set("onclose", js.Null())
	s.onOpen.Release()
	s.onMessage.Release()
	s.onError.Release()
	s.onClose.Release()
}
