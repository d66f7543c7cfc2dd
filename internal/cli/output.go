package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lydakis/mcpwire/internal/mcppool"
)

type toolEntry struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

func entryFromInfo(info mcppool.ToolInfo) toolEntry {
	return toolEntry{
		Name:         info.Name,
		Description:  info.Description,
		InputSchema:  info.InputSchema,
		OutputSchema: info.OutputSchema,
	}
}

func writeToolListText(w io.Writer, tools []toolEntry) error {
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			continue
		}
		line := name
		if desc := firstLine(tool.Description); desc != "" {
			line += "\t" + desc
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("writing tool list output: %w", err)
		}
	}
	return nil
}

func writeToolListJSON(w io.Writer, entries []toolEntry) error {
	if entries == nil {
		entries = []toolEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("writing tool list output: %w", err)
	}
	return nil
}

func entriesFromInfos(tools []mcppool.ToolInfo) []toolEntry {
	entries := make([]toolEntry, 0, len(tools))
	for _, tool := range tools {
		entries = append(entries, entryFromInfo(tool))
	}
	return entries
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

func printToolInfo(w io.Writer, server string, info mcppool.ToolInfo) {
	fmt.Fprintf(w, "Usage: mcpwire call %s %s '<json-args>'\n", server, info.Name)
	if desc := strings.TrimSpace(info.Description); desc != "" {
		fmt.Fprintf(w, "\nDescription:\n  %s\n", desc)
	}

	fmt.Fprintln(w, "\nInput:")
	printSchemaProperties(w, decodeSchema(info.InputSchema), true)

	if output := decodeSchema(info.OutputSchema); output == nil {
		fmt.Fprintln(w, "\nOutput: not declared by server")
	} else {
		fmt.Fprintln(w, "\nOutput:")
		printSchemaProperties(w, output, false)
	}
}

func decodeSchema(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}

type schemaLine struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

func schemaLines(schema map[string]any) []schemaLine {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	if list, ok := schema["required"].([]any); ok {
		for _, item := range list {
			if name, ok := item.(string); ok {
				required[name] = true
			}
		}
	}

	lines := make([]schemaLine, 0, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		line := schemaLine{Name: name, Type: "any", Required: required[name]}
		if t, ok := prop["type"].(string); ok && t != "" {
			line.Type = t
		}
		line.Description, _ = prop["description"].(string)
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Required != lines[j].Required {
			return lines[i].Required
		}
		return lines[i].Name < lines[j].Name
	})
	return lines
}

func printSchemaProperties(w io.Writer, schema map[string]any, includeRequired bool) {
	lines := schemaLines(schema)
	if len(lines) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	for _, line := range lines {
		suffix := ""
		if includeRequired && line.Required {
			suffix = " (required)"
		}
		fmt.Fprintf(w, "  %s <%s>%s\n", line.Name, line.Type, suffix)
		if line.Description != "" {
			fmt.Fprintf(w, "    %s\n", line.Description)
		}
	}
}
