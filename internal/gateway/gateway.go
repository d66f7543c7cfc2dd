// Package gateway republishes the tools of several remote servers as one
// MCP server, so "mcpwire serve" can front them for local clients.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lydakis/mcpwire/internal/mcppool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Separator joins the server and tool names of a published tool.
const Separator = "__"

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// Caller lists and invokes tools on named servers.
type Caller interface {
	ListTools(ctx context.Context, name string) ([]mcppool.ToolInfo, error)
	CallTool(ctx context.Context, name, tool string, args json.RawMessage) (*mcp.CallToolResult, error)
}

// New builds an MCP server publishing every tool of servers as
// "<server>__<tool>". A server whose tools cannot be listed is skipped with a
// warning. The count of published tools is returned.
func New(ctx context.Context, c Caller, servers []string, version string, logger *slog.Logger) (*server.MCPServer, int) {
	if logger == nil {
		logger = slog.Default()
	}
	srv := server.NewMCPServer("mcpwire", version, server.WithToolCapabilities(false))

	names := append([]string(nil), servers...)
	sort.Strings(names)

	published := 0
	for _, name := range names {
		tools, err := c.ListTools(ctx, name)
		if err != nil {
			logger.Warn("skipping tool server", "tool", name, "error", err)
			continue
		}
		for _, info := range tools {
			srv.AddTool(publishedTool(name, info), forward(c, name, info.Name))
			published++
		}
		logger.Debug("published tools", "tool", name, "count", len(tools))
	}
	return srv, published
}

func publishedTool(serverName string, info mcppool.ToolInfo) mcp.Tool {
	schema := info.InputSchema
	if len(schema) == 0 || string(schema) == "null" {
		schema = emptyObjectSchema
	}
	tool := mcp.NewToolWithRawSchema(serverName+Separator+info.Name, info.Description, schema)
	if len(info.OutputSchema) > 0 {
		tool.RawOutputSchema = info.OutputSchema
	}
	return tool
}

// forward relays a call to the remote tool. Failures come back as tool
// errors so the client sees the message.
func forward(c Caller, serverName, toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if request.Params.Arguments != nil {
			raw, err := json.Marshal(request.Params.Arguments)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("encoding arguments: %v", err)), nil
			}
			args = raw
		}

		result, err := c.CallTool(ctx, serverName, toolName, args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s%s%s: %v", serverName, Separator, toolName, err)), nil
		}
		return result, nil
	}
}
