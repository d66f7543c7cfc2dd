package config

import (
	"strings"
	"testing"
)

func TestValidateAcceptsResolvableTools(t *testing.T) {
	cfg := &Config{
		Workspace: "acme",
		RunURL:    "https://run.example.com",
		Tools: map[string]ToolConfig{
			"search": {},
			"box":    {Kind: "sandbox", IdleTimeout: "10s"},
			"local":  {URL: "ws://127.0.0.1:9000"},
		},
		ConnectBackoff: 2,
		LogLevel:       "debug",
	}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsUnresolvableAndBadKinds(t *testing.T) {
	cfg := &Config{
		Tools: map[string]ToolConfig{
			"orphan": {},
			"weird":  {Kind: "agent", URL: "https://example.com"},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want non-nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "tools.orphan: no url") {
		t.Fatalf("Validate() error = %q, want unresolvable tool message", msg)
	}
	if !strings.Contains(msg, `tools.weird.kind: must be "function" or "sandbox"`) {
		t.Fatalf("Validate() error = %q, want kind message", msg)
	}
}

func TestValidateRequiresWorkspaceForResolvedURLs(t *testing.T) {
	cfg := &Config{
		RunURL: "https://run.example.com",
		Tools:  map[string]ToolConfig{"search": {}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "tools.search: workspace is required") {
		t.Fatalf("Validate() error = %v, want workspace message", err)
	}
}

func TestValidateRejectsInvalidURLDurationsAndRetry(t *testing.T) {
	cfg := &Config{
		RunURL:            "://bad-url",
		InternalScheme:    "ftp",
		IdleTimeout:       "abc",
		ConnectRetryDelay: "-1s",
		CatalogTTL:        "often",
		ConnectRetries:    -1,
		ConnectBackoff:    0.5,
		LogLevel:          "loud",
		Serve:             ServeConfig{AllowedOrigins: []string{"*", "https://ok.example", "not-an-origin"}},
		Tools: map[string]ToolConfig{
			"bad": {URL: "ftp://example.com", IdleTimeout: "later"},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want non-nil")
	}

	msg := err.Error()
	for _, want := range []string{
		"run_url: invalid URL",
		"internal_scheme: must be http or https",
		"idle_timeout: invalid duration",
		"connect_retry_delay: must be >= 0",
		"catalog_ttl: invalid duration",
		"connect_retries: must be >= 0",
		"connect_backoff: must be >= 1",
		"log_level: unknown log level",
		`serve.allowed_origins[2]: want scheme://host[:port] or "*", got "not-an-origin"`,
		`tools.bad.url: unsupported scheme "ftp"`,
		"tools.bad.idle_timeout: invalid duration",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Validate() error = %q, want %q", msg, want)
		}
	}
}
