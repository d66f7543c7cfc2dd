package transport

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"strings"
)

// Socket is the capability every socket strategy provides. Frames arrive
// through the Handlers passed to Dial, never through the Socket itself.
type Socket interface {
	// Send writes one text frame.
	Send(ctx context.Context, frame []byte) error
	// Close closes the socket. It is safe to call more than once.
	Close() error
}

// Handlers receives socket events. Nil fields are ignored. OnClose fires
// exactly once per socket; err is nil for a normal or locally initiated close.
type Handlers struct {
	OnOpen    func()
	OnMessage func(frame []byte)
	OnClose   func(err error)
	OnError   func(err error)
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) message(frame []byte) {
	if h.OnMessage != nil {
		h.OnMessage(frame)
	}
}

func (h Handlers) close(err error) {
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Dialer opens a Socket with one socket implementation.
type Dialer interface {
	Strategy() Strategy
	Dial(ctx context.Context, url string, header http.Header, h Handlers) (Socket, error)
}

// Strategy names a socket implementation.
type Strategy string

const (
	// StrategyLibrary uses gorilla/websocket. It is the default.
	StrategyLibrary Strategy = "library"
	// StrategyBrowser uses the browser's WebSocket through syscall/js.
	StrategyBrowser Strategy = "browser"
	// StrategyEdge uses golang.org/x/net/websocket, which carries no
	// extension negotiation and suits worker/edge runtimes.
	StrategyEdge Strategy = "edge"
)

// RuntimeEnvVar forces a strategy regardless of GOOS/GOARCH.
const RuntimeEnvVar = "MCPWIRE_RUNTIME"

// Runtime is the input to strategy selection.
type Runtime struct {
	GOOS   string
	GOARCH string
	Getenv func(string) string
}

// CurrentRuntime describes the running process.
func CurrentRuntime() Runtime {
	return Runtime{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, Getenv: os.Getenv}
}

// edgeMarkers are environment variables set by worker/edge hosts.
var edgeMarkers = []string{"CF_WORKER", "WASMEDGE_RUNTIME"}

// SelectStrategy picks the socket implementation for rt. An explicit
// MCPWIRE_RUNTIME value wins; js/wasm selects the browser socket; wasip1 or
// an edge marker selects the edge socket; anything else uses the library
// socket.
func SelectStrategy(rt Runtime) Strategy {
	if rt.Getenv != nil {
		switch Strategy(strings.ToLower(strings.TrimSpace(rt.Getenv(RuntimeEnvVar)))) {
		case StrategyBrowser:
			return StrategyBrowser
		case StrategyEdge:
			return StrategyEdge
		case StrategyLibrary:
			return StrategyLibrary
		}
	}
	if rt.GOOS == "js" && rt.GOARCH == "wasm" {
		return StrategyBrowser
	}
	if rt.GOOS == "wasip1" {
		return StrategyEdge
	}
	if rt.Getenv != nil {
		for _, key := range edgeMarkers {
			if rt.Getenv(key) != "" {
				return StrategyEdge
			}
		}
	}
	return StrategyLibrary
}

// NewDialer returns the Dialer for s.
func NewDialer(s Strategy) Dialer {
	switch s {
	case StrategyBrowser:
		return browserDialer{}
	case StrategyEdge:
		return edgeDialer{}
	default:
		return libraryDialer{}
	}
}

// SelectDialer is NewDialer(SelectStrategy(rt)).
func SelectDialer(rt Runtime) Dialer {
	return NewDialer(SelectStrategy(rt))
}
