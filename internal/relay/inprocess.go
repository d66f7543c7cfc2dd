package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/mark3labs/mcp-go/server"
)

// InProcess answers multiplexed clients with an mcp-go server running in
// the same process. Each envelope is handled on its own goroutine, so a slow
// tool never blocks a client's read loop.
type InProcess struct {
	server *server.MCPServer
	router Router
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewInProcess wraps srv. Responses are delivered through router.
func NewInProcess(srv *server.MCPServer, router Router, logger *slog.Logger) *InProcess {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcess{
		server: srv,
		router: router,
		logger: logger.With("relay", "inprocess"),
	}
}

// HandleMessage passes env to the server and routes any response.
func (p *InProcess) HandleMessage(ctx context.Context, clientID string, env *jsonrpc.Envelope) {
	frame, err := jsonrpc.Marshal(env)
	if err != nil {
		p.logger.Warn("dropping unencodable envelope", "client", clientID, "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		reply := p.server.HandleMessage(ctx, json.RawMessage(frame))
		if reply == nil {
			return
		}
		raw, err := json.Marshal(reply)
		if err != nil {
			p.logger.Warn("encoding server reply failed", "client", clientID, "error", err)
			return
		}
		out, err := jsonrpc.Parse(raw)
		if err != nil {
			p.logger.Warn("server produced invalid reply", "client", clientID, "error", err)
			return
		}
		if err := p.router.Send(ctx, out); err != nil {
			p.logger.Debug("routing reply failed", "client", clientID, "error", err)
		}
	}()
}

// Wait blocks until every in-flight message has been answered.
func (p *InProcess) Wait() {
	p.wg.Wait()
}
