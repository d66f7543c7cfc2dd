//go:build !(js && wasm)

package transport

import (
	"context"
	"errors"
	"net/http"
)

// errNoBrowserSocket is returned when the browser strategy is forced outside
// a js/wasm build.
var errNoBrowserSocket = errors.New("browser WebSocket requires a js/wasm build")

type browserDialer struct{}

func (browserDialer) Strategy() Strategy { return StrategyBrowser }

func (browserDialer) Dial(context.Context, string, http.Header, Handlers) (Socket, error) {
	return nil, errNoBrowserSocket
}
