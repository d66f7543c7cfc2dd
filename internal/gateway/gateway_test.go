package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lydakis/mcpwire/internal/mcppool"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	tools   map[string][]mcppool.ToolInfo
	gotArgs json.RawMessage
	callErr error
}

func (f *fakeCaller) ListTools(_ context.Context, name string) ([]mcppool.ToolInfo, error) {
	tools, ok := f.tools[name]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return tools, nil
}

func (f *fakeCaller) CallTool(_ context.Context, name, tool string, args json.RawMessage) (*mcp.CallToolResult, error) {
	f.gotArgs = args
	if f.callErr != nil {
		return nil, f.callErr
	}
	return mcp.NewToolResultText(name + "/" + tool), nil
}

func handle(t *testing.T, c *fakeCaller, servers []string, method string, params any) (json.RawMessage, int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, n := New(context.Background(), c, servers, "test", logger)

	req, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	reply := srv.HandleMessage(context.Background(), req)
	out, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode reply %s: %v", out, err)
	}
	if resp.Error != nil {
		t.Fatalf("%s error = %s", method, resp.Error.Message)
	}
	return resp.Result, n
}

func TestNewPublishesPrefixedToolsAndSkipsUnreachable(t *testing.T) {
	c := &fakeCaller{tools: map[string][]mcppool.ToolInfo{
		"search": {
			{Name: "web", Description: "Search the web", InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
			{Name: "news"},
		},
	}}

	raw, n := handle(t, c, []string{"search", "offline"}, "tools/list", nil)
	if n != 2 {
		t.Fatalf("published = %d, want 2", n)
	}
	var list struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode tools: %v", err)
	}
	got := map[string]string{}
	for _, tool := range list.Tools {
		got[tool.Name] = string(tool.InputSchema)
	}
	if !strings.Contains(got["search__web"], `"q"`) {
		t.Fatalf("search__web schema = %q, want q property", got["search__web"])
	}
	if got["search__news"] != `{"type":"object"}` {
		t.Fatalf("search__news schema = %q, want empty object schema", got["search__news"])
	}
}

func TestForwardPassesArgumentsAndWrapsErrors(t *testing.T) {
	c := &fakeCaller{tools: map[string][]mcppool.ToolInfo{"search": {{Name: "web"}}}}

	raw, _ := handle(t, c, []string{"search"}, "tools/call", map[string]any{
		"name":      "search__web",
		"arguments": map[string]any{"q": "mcp"},
	})
	result, err := mcp.ParseCallToolResult(&raw)
	if err != nil {
		t.Fatalf("ParseCallToolResult() error = %v", err)
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok || text.Text != "search/web" {
		t.Fatalf("content = %#v, want search/web", result.Content)
	}
	if string(c.gotArgs) != `{"q":"mcp"}` {
		t.Fatalf("forwarded args = %s", c.gotArgs)
	}

	c.callErr = errors.New("remote down")
	raw, _ = handle(t, c, []string{"search"}, "tools/call", map[string]any{"name": "search__web"})
	result, err = mcp.ParseCallToolResult(&raw)
	if err != nil {
		t.Fatalf("ParseCallToolResult() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("IsError = false, want true")
	}
	text, _ = mcp.AsTextContent(result.Content[0])
	if text == nil || !strings.Contains(text.Text, "remote down") {
		t.Fatalf("content = %#v, want remote down", result.Content)
	}
}
