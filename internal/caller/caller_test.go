package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lydakis/mcpwire/internal/config"
	"github.com/lydakis/mcpwire/internal/mcppool"
	"github.com/lydakis/mcpwire/internal/telemetry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type fakePool struct {
	mu      sync.Mutex
	tools   []mcppool.ToolInfo
	lists   int
	called  []string
	callErr error
}

func (f *fakePool) ListTools(context.Context, string) ([]mcppool.ToolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return f.tools, nil
}

func (f *fakePool) CallTool(_ context.Context, _, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, tool)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return mcp.NewToolResultText(string(args)), nil
}

func (f *fakePool) Kind(string) string { return config.KindSandbox }

type recordedSpan struct {
	name  string
	attrs map[string]any
	err   error
	ended bool
}

type recordingTracer struct {
	mu    sync.Mutex
	spans []*recordedSpan
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, telemetry.Span) {
	s := &recordedSpan{name: name, attrs: map[string]any{}}
	for k, v := range attrs {
		s.attrs[k] = v
	}
	r.mu.Lock()
	r.spans = append(r.spans, s)
	r.mu.Unlock()
	return ctx, s
}

func (s *recordedSpan) SetAttribute(key string, value any) { s.attrs[key] = value }

func (s *recordedSpan) RecordException(err error) { s.err = err }

func (s *recordedSpan) End() { s.ended = true }

func TestCallToolResolvesAliasOnce(t *testing.T) {
	pool := &fakePool{tools: []mcppool.ToolInfo{{Name: "get_issue"}}}
	c := New(pool, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.CallTool(context.Background(), "github", "get-issue", nil); err != nil {
			t.Fatalf("CallTool() error = %v", err)
		}
	}
	if pool.lists != 1 {
		t.Fatalf("ListTools calls = %d, want 1", pool.lists)
	}
	for _, got := range pool.called {
		if got != "get_issue" {
			t.Fatalf("called tool = %q, want get_issue", got)
		}
	}
}

func TestCallToolRefreshesCatalogOnMiss(t *testing.T) {
	pool := &fakePool{tools: []mcppool.ToolInfo{{Name: "search"}}}
	c := New(pool, nil)

	if _, err := c.ListTools(context.Background(), "github"); err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	pool.mu.Lock()
	pool.tools = append(pool.tools, mcppool.ToolInfo{Name: "fetch-page"})
	pool.mu.Unlock()

	if _, err := c.CallTool(context.Background(), "github", "fetch_page", nil); err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if pool.lists != 2 {
		t.Fatalf("ListTools calls = %d, want 2", pool.lists)
	}
}

func TestCallToolUnknownToolFails(t *testing.T) {
	pool := &fakePool{tools: []mcppool.ToolInfo{{Name: "search"}}}
	tracer := &recordingTracer{}
	c := New(pool, tracer)

	_, err := c.CallTool(context.Background(), "github", "delete", nil)
	if !errors.Is(err, ErrToolNotFound) || !strings.Contains(err.Error(), "delete on github") {
		t.Fatalf("CallTool() error = %v, want not found", err)
	}
	if len(pool.called) != 0 {
		t.Fatalf("called = %v, want none", pool.called)
	}
	if len(tracer.spans) != 1 || tracer.spans[0].err == nil || !tracer.spans[0].ended {
		t.Fatalf("spans = %#v, want one ended span with error", tracer.spans)
	}
}

func TestCallToolSpanAttributesAndErrors(t *testing.T) {
	remoteErr := errors.New("remote failed")
	pool := &fakePool{tools: []mcppool.ToolInfo{{Name: "run_code"}}, callErr: remoteErr}
	tracer := &recordingTracer{}
	c := New(pool, tracer)

	if _, err := c.CallTool(context.Background(), "box", "run-code", json.RawMessage(`{}`)); err != remoteErr {
		t.Fatalf("CallTool() error = %v, want %v", err, remoteErr)
	}

	span := tracer.spans[0]
	if span.name != SpanCallTool {
		t.Fatalf("span name = %q, want %q", span.name, SpanCallTool)
	}
	if span.attrs[AttrToolName] != "box" || span.attrs[AttrToolKind] != config.KindSandbox {
		t.Fatalf("span attrs = %v", span.attrs)
	}
	if span.attrs[AttrToolCall] != "run_code" {
		t.Fatalf("span %s = %v, want run_code", AttrToolCall, span.attrs[AttrToolCall])
	}
	if span.err != remoteErr || !span.ended {
		t.Fatalf("span err = %v ended = %v", span.err, span.ended)
	}
}

func TestListToolsSpan(t *testing.T) {
	pool := &fakePool{tools: []mcppool.ToolInfo{{Name: "a"}, {Name: "b"}}}
	tracer := &recordingTracer{}
	c := New(pool, tracer)

	tools, err := c.ListTools(context.Background(), "github")
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(tools))
	}
	if len(tracer.spans) != 1 || tracer.spans[0].name != SpanListTools || tracer.spans[0].err != nil {
		t.Fatalf("spans = %#v", tracer.spans)
	}
}

func TestToolInfoMatchesAlias(t *testing.T) {
	pool := &fakePool{tools: []mcppool.ToolInfo{
		{Name: "list-repos", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}}
	c := New(pool, nil)

	info, err := c.ToolInfo(context.Background(), "github", "list_repos")
	if err != nil {
		t.Fatalf("ToolInfo() error = %v", err)
	}
	if info.Name != "list-repos" || string(info.InputSchema) != `{"type":"object"}` {
		t.Fatalf("ToolInfo() = %#v", info)
	}
}

func TestCanonicalToolNameMatchesOnlyExactNames(t *testing.T) {
	tools := []mcppool.ToolInfo{{Name: "search"}, {Name: "get_issue"}}
	tests := []struct {
		requested string
		want      string
		ok        bool
	}{
		{"search", "search", true},
		{"get_issue", "get_issue", true},
		{"get-issue", "get_issue", true},
		{"Search", "", false},
		{"get_issue_extra", "", false},
	}
	for _, tt := range tests {
		got, ok := canonicalToolName(tools, tt.requested)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("canonicalToolName(%q) = (%q, %v), want (%q, %v)", tt.requested, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCallerEndToEndOverStreamableHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mcpServer := server.NewMCPServer("caller-helper", "1.0.0")
	mcpServer.AddTool(mcp.NewTool("shout_text", mcp.WithString("text", mcp.Required())),
		func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := request.RequireString("text")
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(strings.ToUpper(text)), nil
		})

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpServer))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint: errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool := mcppool.New(mcppool.Options{
		Config: &config.Config{Tools: map[string]config.ToolConfig{"loud": {URL: srv.URL}}},
		Logger: logger,
	})
	defer pool.CloseAll()

	c := New(pool, telemetry.NewLogging(logger))
	result, err := c.CallTool(ctx, "loud", "shout-text", json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok || text.Text != "HI" {
		t.Fatalf("CallTool() content = %#v, want HI", result.Content)
	}

	out := logs.String()
	for _, want := range []string{"span=tools.call", "tool.name=loud", "tool.kind=function", "tool.call=shout_text"} {
		if !strings.Contains(out, want) {
			t.Fatalf("logs missing %q:\n%s", want, out)
		}
	}
}
