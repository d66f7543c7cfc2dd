package mcppool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/lydakis/mcpwire/internal/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// callToolParams is sent as-is so the caller's arguments reach the tool
// byte for byte.
type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// connectSocket opens a WebSocket session to base and runs the MCP
// handshake. onDrop fires when the remote end closes the socket.
func (p *Pool) connectSocket(ctx context.Context, base string, header http.Header, logger *slog.Logger, onDrop func(*connection)) (*connection, error) {
	conn := &connection{url: base, kind: transport.KindSocket}

	sess := transport.NewSession(transport.Options{
		URL:    base,
		Header: header,
		Dialer: p.dialer,
		Retry:  p.retry,
		Logger: logger,
		OnClose: func(_ *transport.Connection, err error) {
			logger.Debug("tool socket closed", "error", err)
			if onDrop != nil {
				onDrop(conn)
			}
		},
	},
		transport.WithNotificationHandler(func(env *jsonrpc.Envelope) {
			logger.Debug("tool notification", "method", env.Method)
		}),
		transport.WithErrorHandler(func(err error) {
			logger.Warn("tool socket error", "error", err)
		}),
	)

	if err := sess.Open(ctx); err != nil {
		return nil, err
	}
	if err := initializeSession(ctx, sess); err != nil {
		sess.Close()
		var cerr *transport.ConnectError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, &transport.ConnectError{URL: sess.Client().URL(), Attempts: 1, Err: err}
	}

	conn.listTools = func(ctx context.Context) ([]mcp.Tool, error) {
		raw, err := sess.Call(ctx, string(mcp.MethodToolsList), struct{}{})
		if err != nil {
			return nil, err
		}
		var result mcp.ListToolsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decoding tools/list result: %w", err)
		}
		return result.Tools, nil
	}
	conn.callTool = func(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
		raw, err := sess.Call(ctx, string(mcp.MethodToolsCall), callToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, err
		}
		result, err := mcp.ParseCallToolResult(&raw)
		if err != nil {
			return nil, fmt.Errorf("decoding tools/call result: %w", err)
		}
		return result, nil
	}
	conn.close = sess.Close
	return conn, nil
}

func initializeSession(ctx context.Context, sess *transport.Session) error {
	if _, err := sess.Call(ctx, string(mcp.MethodInitialize), initializeParams()); err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	if err := sess.Notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

func initializeParams() mcp.InitializeParams {
	return mcp.InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo: mcp.Implementation{
			Name:    clientName,
			Version: clientVersion,
		},
		Capabilities: mcp.ClientCapabilities{},
	}
}
