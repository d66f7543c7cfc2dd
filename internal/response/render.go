// Package response renders tool results for the terminal.
package response

import (
	"encoding/base64"
	"encoding/json"
	"mime"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitToolErr  = 1
	ExitUsageErr = 2
	ExitInternal = 3
)

const tempPrefix = "mcpwire-"

// tempDir is where binary content is written. Empty means os.TempDir.
var tempDir = ""

// Render turns a tool result into stdout bytes and an exit code.
// Structured content wins over content blocks. Text blocks are printed
// as-is; images and embedded resources are written to temp files and their
// paths printed instead.
func Render(result *mcp.CallToolResult) ([]byte, int) {
	if result == nil {
		return nil, ExitInternal
	}

	code := ExitOK
	if result.IsError {
		code = ExitToolErr
	}

	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return withNewline(data), code
		}
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if out, ok := renderBlock(content); ok {
			parts = append(parts, out)
			continue
		}
		if raw, err := json.Marshal(content); err == nil {
			parts = append(parts, string(raw))
		}
	}
	if len(parts) == 0 {
		return nil, code
	}
	return withNewline([]byte(strings.Join(parts, "\n"))), code
}

// block is the wire shape shared by every content type.
type block struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Data     string          `json:"data"`
	MIMEType string          `json:"mimeType"`
	Resource json.RawMessage `json:"resource"`
}

func renderBlock(content mcp.Content) (string, bool) {
	if text, ok := mcp.AsTextContent(content); ok {
		return text.Text, true
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return "", false
	}
	var b block
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", false
	}
	switch b.Type {
	case "text":
		return b.Text, true
	case "image", "audio":
		return saveBase64(b.Type, b.MIMEType, b.Data)
	case "resource":
		return renderResource(b.Resource)
	default:
		return "", false
	}
}

func renderResource(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var res struct {
		Text     string `json:"text"`
		Blob     string `json:"blob"`
		MIMEType string `json:"mimeType"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", false
	}
	switch {
	case res.Text != "":
		return save("resource", res.MIMEType, []byte(res.Text))
	case res.Blob != "":
		return saveBase64("resource", res.MIMEType, res.Blob)
	default:
		return "", false
	}
}

func saveBase64(kind, mimeType, encoded string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return save(kind, mimeType, data)
}

func save(kind, mimeType string, data []byte) (string, bool) {
	f, err := os.CreateTemp(tempDir, tempPrefix+kind+"-*"+extension(mimeType))
	if err != nil {
		return "", false
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", false
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", false
	}
	return name, true
}

func extension(mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		return ".bin"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return ".txt"
	case strings.Contains(mimeType, "json"):
		return ".json"
	default:
		return ".bin"
	}
}

func withNewline(out []byte) []byte {
	if len(out) == 0 || out[len(out)-1] == '\n' {
		return out
	}
	return append(out, '\n')
}
