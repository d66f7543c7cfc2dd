package mcppool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lydakis/mcpwire/internal/httpheaders"
	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/lydakis/mcpwire/internal/transport"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// streamPath is where http-stream tools serve MCP.
const streamPath = "/mcp"

func streamURL(base string) string {
	return strings.TrimRight(transport.HTTPURL(base), "/") + streamPath
}

// connectHTTP opens an MCP streamable HTTP session at <base>/mcp. Setup
// failures are reported as *transport.ConnectError so they can fall back.
func (p *Pool) connectHTTP(ctx context.Context, base string, header http.Header) (*connection, error) {
	target := streamURL(base)

	var opts []mcptransport.StreamableHTTPCOption
	if h := httpheaders.Flatten(header); len(h) > 0 {
		opts = append(opts, mcptransport.WithHTTPHeaders(h))
	}
	if p.httpClient != nil {
		opts = append(opts, mcptransport.WithHTTPBasicClient(p.httpClient))
	}

	trans, err := mcptransport.NewStreamableHTTP(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	c := mcpclient.NewClient(remoteErrors{trans})

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, &transport.ConnectError{URL: target, Attempts: 1, Err: fmt.Errorf("starting HTTP client: %w", err)}
	}

	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: initializeParams(),
	}); err != nil {
		c.Close()
		return nil, &transport.ConnectError{URL: target, Attempts: 1, Err: fmt.Errorf("initializing: %w", err)}
	}

	return &connection{
		url:  base,
		kind: transport.KindHTTPStream,
		listTools: func(ctx context.Context) ([]mcp.Tool, error) {
			result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			if err != nil {
				return nil, unwrapRemote(err)
			}
			return result.Tools, nil
		},
		callTool: func(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
			decoded, err := decodeArgs(args)
			if err != nil {
				return nil, err
			}
			result, err := c.CallTool(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{
					Name:      name,
					Arguments: decoded,
				},
			})
			if err != nil {
				return nil, unwrapRemote(err)
			}
			return result, nil
		},
		close: func() error {
			return c.Close()
		},
	}, nil
}

// remoteErrors hands JSON-RPC error responses to the client as
// *jsonrpc.Error so the code, message and data survive. The client would
// otherwise turn them into mcp-go sentinel errors.
type remoteErrors struct {
	*mcptransport.StreamableHTTP
}

func (t remoteErrors) SendRequest(ctx context.Context, req mcptransport.JSONRPCRequest) (*mcptransport.JSONRPCResponse, error) {
	resp, err := t.StreamableHTTP.SendRequest(ctx, req)
	if err != nil || resp == nil || resp.Error == nil {
		return resp, err
	}
	remote := &jsonrpc.Error{Code: resp.Error.Code, Message: resp.Error.Message}
	if resp.Error.Data != nil {
		if data, merr := json.Marshal(resp.Error.Data); merr == nil {
			remote.Data = data
		}
	}
	return nil, remote
}

// unwrapRemote strips the client's transport wrapper from a remote error.
func unwrapRemote(err error) error {
	var remote *jsonrpc.Error
	if errors.As(err, &remote) {
		return remote
	}
	return err
}

// decodeArgs turns the caller's JSON arguments into the map the MCP client
// sends. Empty input means no arguments.
func decodeArgs(args json.RawMessage) (map[string]any, error) {
	if len(strings.TrimSpace(string(args))) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(args, &out); err != nil {
		return nil, fmt.Errorf("invalid args: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
