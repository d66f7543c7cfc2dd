package response

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func useTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := tempDir
	tempDir = dir
	t.Cleanup(func() { tempDir = prev })
	return dir
}

func TestRenderPrefersStructuredContent(t *testing.T) {
	result := &mcp.CallToolResult{
		StructuredContent: map[string]any{"count": 3},
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "ignored"},
		},
	}

	out, code := Render(result)
	if code != ExitOK {
		t.Fatalf("Render code = %d, want %d", code, ExitOK)
	}
	if string(out) != "{\"count\":3}\n" {
		t.Fatalf("Render output = %q, want %q", string(out), "{\"count\":3}\\n")
	}
}

func TestRenderTextBlocksAreNewlineSeparated(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "alpha"},
			mcp.TextContent{Type: "text", Text: "beta\n"},
		},
	}

	out, _ := Render(result)
	if string(out) != "alpha\nbeta\n" {
		t.Fatalf("Render output = %q, want %q", string(out), "alpha\\nbeta\\n")
	}
}

func TestRenderImageWritesTempFile(t *testing.T) {
	dir := useTempDir(t)
	payload := []byte("png-bytes")
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.ImageContent{
				Type:     "image",
				Data:     base64.StdEncoding.EncodeToString(payload),
				MIMEType: "application/octet-stream",
			},
		},
	}

	out, code := Render(result)
	if code != ExitOK {
		t.Fatalf("Render code = %d, want %d", code, ExitOK)
	}
	path := strings.TrimSpace(string(out))
	if filepath.Dir(path) != dir {
		t.Fatalf("path = %q, want file in %q", path, dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "mcpwire-image-") {
		t.Fatalf("path = %q, want mcpwire-image- prefix", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading emitted file: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("file content = %q, want %q", data, payload)
	}
}

func TestRenderEmbeddedTextResource(t *testing.T) {
	useTempDir(t)
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.EmbeddedResource{
				Type: "resource",
				Resource: mcp.TextResourceContents{
					URI:      "file:///report.txt",
					MIMEType: "text/plain",
					Text:     "report body",
				},
			},
		},
	}

	out, _ := Render(result)
	path := strings.TrimSpace(string(out))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading emitted file: %v", err)
	}
	if string(data) != "report body" {
		t.Fatalf("file content = %q, want report body", data)
	}
}

func TestRenderToolErrorExitCode(t *testing.T) {
	result := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "nope"},
		},
	}

	out, code := Render(result)
	if code != ExitToolErr {
		t.Fatalf("Render code = %d, want %d", code, ExitToolErr)
	}
	if string(out) != "nope\n" {
		t.Fatalf("Render output = %q, want nope", out)
	}
}

func TestRenderNilResultIsInternalError(t *testing.T) {
	if _, code := Render(nil); code != ExitInternal {
		t.Fatalf("Render(nil) code = %d, want %d", code, ExitInternal)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"":                          ".bin",
		"application/json":          ".json",
		"text/x-unknown-for-sure":   ".txt",
		"application/x-vendor-json": ".json",
		"application/x-nothing":     ".bin",
	}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Fatalf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
