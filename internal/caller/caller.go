// Package caller is the entry point for listing and invoking remote tools.
// It resolves tool-name aliases and wraps every operation in a trace span.
package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lydakis/mcpwire/internal/mcppool"
	"github.com/lydakis/mcpwire/internal/telemetry"
	"github.com/mark3labs/mcp-go/mcp"
)

// Span names and attribute keys.
const (
	SpanListTools = "tools.list"
	SpanCallTool  = "tools.call"

	AttrToolName = "tool.name"
	AttrToolKind = "tool.kind"
	AttrToolCall = "tool.call"
)

// ErrToolNotFound is returned when a server does not expose the requested
// tool under either spelling.
var ErrToolNotFound = errors.New("tool not found")

// Pool is the connection manager a Caller drives.
type Pool interface {
	ListTools(ctx context.Context, name string) ([]mcppool.ToolInfo, error)
	CallTool(ctx context.Context, name, tool string, args json.RawMessage) (*mcp.CallToolResult, error)
	Kind(name string) string
}

// Caller lists and calls tools on named remote servers.
type Caller struct {
	pool   Pool
	tracer telemetry.Tracer

	mu      sync.Mutex
	catalog map[string][]mcppool.ToolInfo
}

// New creates a Caller. A nil tracer records nothing.
func New(pool Pool, tracer telemetry.Tracer) *Caller {
	if tracer == nil {
		tracer = telemetry.Noop{}
	}
	return &Caller{
		pool:    pool,
		tracer:  tracer,
		catalog: make(map[string][]mcppool.ToolInfo),
	}
}

// ListTools returns the tools exposed by name and refreshes the alias
// catalog.
func (c *Caller) ListTools(ctx context.Context, name string) ([]mcppool.ToolInfo, error) {
	ctx, span := c.tracer.StartSpan(ctx, SpanListTools, c.attrs(name))
	defer span.End()

	tools, err := c.list(ctx, name)
	if err != nil {
		span.RecordException(err)
		return nil, err
	}
	return tools, nil
}

func (c *Caller) list(ctx context.Context, name string) ([]mcppool.ToolInfo, error) {
	tools, err := c.pool.ListTools(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.catalog[name] = tools
	c.mu.Unlock()
	return tools, nil
}

// ToolInfo returns metadata and schemas for one tool, accepting '-' and '_'
// as interchangeable.
func (c *Caller) ToolInfo(ctx context.Context, name, tool string) (*mcppool.ToolInfo, error) {
	tools, err := c.ListTools(ctx, name)
	if err != nil {
		return nil, err
	}
	canonical, ok := canonicalToolName(tools, tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrToolNotFound, tool, name)
	}
	for _, t := range tools {
		if t.Name == canonical {
			info := t
			return &info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrToolNotFound, tool, name)
}

// CallTool invokes tool on name. The tool name is matched against the
// listed tools, so "get-issue" reaches "get_issue". args are passed through
// as-is.
func (c *Caller) CallTool(ctx context.Context, name, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	attrs := c.attrs(name)
	attrs[AttrToolCall] = tool
	ctx, span := c.tracer.StartSpan(ctx, SpanCallTool, attrs)
	defer span.End()

	canonical, err := c.resolve(ctx, name, tool)
	if err != nil {
		span.RecordException(err)
		return nil, err
	}
	if canonical != tool {
		span.SetAttribute(AttrToolCall, canonical)
	}

	result, err := c.pool.CallTool(ctx, name, canonical, args)
	if err != nil {
		span.RecordException(err)
		return nil, err
	}
	if result != nil && result.IsError {
		span.SetAttribute("tool.error", true)
	}
	return result, nil
}

// resolve maps a requested tool name to the remote's spelling, listing the
// tools again when the cached catalog does not know it.
func (c *Caller) resolve(ctx context.Context, name, tool string) (string, error) {
	c.mu.Lock()
	tools, cached := c.catalog[name]
	c.mu.Unlock()

	if cached {
		if canonical, ok := canonicalToolName(tools, tool); ok {
			return canonical, nil
		}
	}

	tools, err := c.list(ctx, name)
	if err != nil {
		return "", err
	}
	canonical, ok := canonicalToolName(tools, tool)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrToolNotFound, tool, name)
	}
	return canonical, nil
}

func (c *Caller) attrs(name string) map[string]any {
	return map[string]any{
		AttrToolName: name,
		AttrToolKind: c.pool.Kind(name),
	}
}

func canonicalToolName(tools []mcppool.ToolInfo, requested string) (string, bool) {
	for _, t := range tools {
		if t.Name == requested {
			return t.Name, true
		}
	}

	alias := normalizeToolAlias(requested)
	if alias == requested {
		return "", false
	}
	for _, t := range tools {
		if t.Name == alias {
			return t.Name, true
		}
	}
	return "", false
}

func normalizeToolAlias(name string) string {
	if strings.Contains(name, "-") {
		return strings.ReplaceAll(name, "-", "_")
	}
	if strings.Contains(name, "_") {
		return strings.ReplaceAll(name, "_", "-")
	}
	return name
}
