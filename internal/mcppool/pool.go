// Package mcppool keeps one lazily opened MCP connection per named tool.
package mcppool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/lydakis/mcpwire/internal/auth"
	"github.com/lydakis/mcpwire/internal/config"
	"github.com/lydakis/mcpwire/internal/httpheaders"
	"github.com/lydakis/mcpwire/internal/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	protocolVersion = "2025-11-25"
	clientName      = "mcpwire"
	clientVersion   = "0.1.0"
)

// ToolInfo is a simplified tool descriptor returned by ListTools.
type ToolInfo struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
}

// connection wraps an MCP client with its transport.
type connection struct {
	url       string
	kind      transport.Kind
	listTools func(ctx context.Context) ([]mcp.Tool, error)
	callTool  func(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error)
	close     func() error
}

// Options configures a Pool.
type Options struct {
	Config *config.Config

	// Auth supplies connect headers. Defaults to auth.None.
	Auth auth.Provider

	Logger *slog.Logger

	// Dialer overrides socket strategy selection.
	Dialer transport.Dialer

	// HTTPClient is used for transport probes and http-stream sessions.
	HTTPClient *http.Client
}

// Pool manages tool connections, creating them on demand. Entries live until
// CloseAll.
type Pool struct {
	cfg        *config.Config
	auth       auth.Provider
	logger     *slog.Logger
	dialer     transport.Dialer
	httpClient *http.Client
	retry      transport.RetryPolicy

	// connect opens one connection to url. Replaced in tests.
	connect func(ctx context.Context, tc *toolConn, url string) (*connection, error)
	probe   func(ctx context.Context, client *http.Client, url string, header http.Header) (transport.Kind, error)

	mu    sync.Mutex
	tools map[string]*toolConn
}

// New creates a new connection pool.
func New(opts Options) *Pool {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	provider := opts.Auth
	if provider == nil {
		provider = auth.None{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		cfg:        cfg,
		auth:       provider,
		logger:     logger,
		dialer:     opts.Dialer,
		httpClient: opts.HTTPClient,
		retry:      retryPolicy(cfg),
		probe:      transport.ProbeKind,
		tools:      make(map[string]*toolConn),
	}
	p.connect = p.connectURL
	return p
}

func retryPolicy(cfg *config.Config) transport.RetryPolicy {
	policy := transport.DefaultRetryPolicy()
	if cfg.ConnectRetries > 0 {
		policy.MaxRetries = cfg.ConnectRetries
	}
	if cfg.ConnectRetryDelay != "" {
		policy.Delay = cfg.RetryDelay()
	}
	if cfg.ConnectBackoff >= 1 {
		policy.Multiplier = cfg.ConnectBackoff
	}
	return policy
}

func (p *Pool) entry(name string) *toolConn {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tc, ok := p.tools[name]; ok {
		return tc
	}
	kind := p.cfg.Tools[name].ToolKind()
	tc := &toolConn{
		name:        name,
		kind:        kind,
		idleTimeout: p.cfg.IdleTimeoutFor(name),
		logger:      p.logger.With("tool", name, "kind", kind),
		state:       StateIdle,
	}
	p.tools[name] = tc
	return tc
}

func (p *Pool) lookup(name string) (*toolConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tc, ok := p.tools[name]
	return tc, ok
}

// headers builds the connect headers for a tool: provider headers, then the
// global table, then the tool's own table.
func (p *Pool) headers(name string) http.Header {
	h := p.auth.Headers().Clone()
	tables := httpheaders.Merge(nil, p.cfg.Headers, true)
	tables = httpheaders.Merge(tables, p.cfg.Tools[name].Headers, true)
	return httpheaders.Apply(h, tables, true)
}

// Kind returns the configured resource kind of a tool.
func (p *Pool) Kind(name string) string {
	return p.entry(name).kind
}

// ListTools returns the tools a remote tool server exposes.
func (p *Pool) ListTools(ctx context.Context, name string) ([]ToolInfo, error) {
	tc := p.entry(name)
	conn, err := p.acquire(ctx, tc)
	if err != nil {
		return nil, err
	}

	tools, err := conn.listTools(ctx)
	p.release(tc, conn, err)
	if err != nil {
		return nil, err
	}

	infos := make([]ToolInfo, len(tools))
	for i, t := range tools {
		inputSchema, _ := marshalInputSchema(t)
		outputSchema, _ := marshalOutputSchema(t)
		infos[i] = ToolInfo{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  inputSchema,
			OutputSchema: outputSchema,
		}
	}
	return infos, nil
}

// CallTool invokes tool on the named server. args must be a JSON object or
// empty; it is otherwise passed through untouched.
func (p *Pool) CallTool(ctx context.Context, name, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	if err := checkArgs(args); err != nil {
		return nil, err
	}

	tc := p.entry(name)
	conn, err := p.acquire(ctx, tc)
	if err != nil {
		return nil, err
	}

	result, err := conn.callTool(ctx, tool, args)
	p.release(tc, conn, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkArgs(args json.RawMessage) error {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" {
		return nil
	}
	if !json.Valid(args) {
		return fmt.Errorf("invalid args: not valid JSON")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("invalid args: must be a JSON object")
	}
	return nil
}

// State reports the connection state of a tool. Unknown tools are idle.
func (p *Pool) State(name string) State {
	tc, ok := p.lookup(name)
	if !ok {
		return StateIdle
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.state
}

// TargetURL returns the URL of the tool's open connection, or "" when none
// is open.
func (p *Pool) TargetURL(name string) string {
	tc, ok := p.lookup(name)
	if !ok {
		return ""
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.conn == nil {
		return ""
	}
	return tc.conn.url
}

// Close disconnects a specific tool. The entry and its cached transport kind
// are kept.
func (p *Pool) Close(name string) {
	tc, ok := p.lookup(name)
	if !ok {
		return
	}
	tc.shutdown()
}

// CloseAll disconnects all tools and forgets every entry.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	tools := p.tools
	p.tools = make(map[string]*toolConn)
	p.mu.Unlock()

	for _, tc := range tools {
		tc.shutdown()
	}
}

func marshalInputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawInputSchema) > 0 {
		return t.RawInputSchema, nil
	}
	b, err := json.Marshal(t.InputSchema)
	return b, err
}

func marshalOutputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawOutputSchema) > 0 {
		return t.RawOutputSchema, nil
	}
	if t.OutputSchema.Type == "" {
		return nil, nil
	}
	b, err := json.Marshal(t.OutputSchema)
	return b, err
}
