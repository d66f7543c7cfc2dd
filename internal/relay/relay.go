// Package relay connects a multiplexer to the upstream MCP peer that answers
// its clients.
package relay

import (
	"context"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

// Router delivers upstream envelopes back to the client named by their
// composite id. *mux.Multiplexer implements it.
type Router interface {
	Send(ctx context.Context, env *jsonrpc.Envelope) error
}
