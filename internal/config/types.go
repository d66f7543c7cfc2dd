package config

import (
	"strconv"
	"strings"
	"time"
)

// Defaults applied when a field is unset.
const (
	DefaultIdleTimeout    = 5000 * time.Millisecond
	DefaultInternalScheme = "http"
	DefaultListen         = "127.0.0.1:7337"
	DefaultToolKind       = KindFunction
)

// Resource kinds a tool can be hosted as.
const (
	KindFunction = "function"
	KindSandbox  = "sandbox"
)

// Config is the top-level mcpwire configuration.
type Config struct {
	Workspace        string            `toml:"workspace" yaml:"workspace"`
	Env              string            `toml:"env" yaml:"env"`
	RunURL           string            `toml:"run_url" yaml:"run_url"`
	InternalHostname string            `toml:"internal_hostname" yaml:"internal_hostname"`
	InternalScheme   string            `toml:"internal_scheme" yaml:"internal_scheme"`
	APIKey           string            `toml:"api_key" yaml:"api_key"`
	Headers          map[string]string `toml:"headers" yaml:"headers"`

	// Connection lifecycle. Durations accept Go syntax ("5s") or bare
	// milliseconds ("5000").
	IdleTimeout       string  `toml:"idle_timeout" yaml:"idle_timeout"`
	SkipIdleClose     bool    `toml:"skip_idle_close" yaml:"skip_idle_close"`
	ConnectRetries    int     `toml:"connect_retries" yaml:"connect_retries"`
	ConnectRetryDelay string  `toml:"connect_retry_delay" yaml:"connect_retry_delay"`
	ConnectBackoff    float64 `toml:"connect_backoff" yaml:"connect_backoff"`

	// CatalogTTL keeps "list" results on disk. Unset disables the cache.
	CatalogTTL string `toml:"catalog_ttl" yaml:"catalog_ttl"`

	LogLevel string `toml:"log_level" yaml:"log_level"`

	Tools map[string]ToolConfig `toml:"tools" yaml:"tools"`
	Serve ServeConfig           `toml:"serve" yaml:"serve"`
}

// ToolConfig describes one named remote tool.
type ToolConfig struct {
	// Kind is "function" (default) or "sandbox".
	Kind string `toml:"kind" yaml:"kind"`
	// URL forces the endpoint, bypassing internal and external resolution.
	URL         string            `toml:"url" yaml:"url"`
	IdleTimeout string            `toml:"idle_timeout" yaml:"idle_timeout"`
	Headers     map[string]string `toml:"headers" yaml:"headers"`
}

// ServeConfig configures "mcpwire serve".
type ServeConfig struct {
	Listen  string            `toml:"listen" yaml:"listen"`
	Command string            `toml:"command" yaml:"command"`
	Args    []string          `toml:"args" yaml:"args"`
	Env     map[string]string `toml:"env" yaml:"env"`
	// AllowedOrigins lists browser origins, besides same-origin pages, that
	// may open a WebSocket. "*" allows any origin.
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// ToolKind returns the tool's kind, defaulting to function.
func (t ToolConfig) ToolKind() string {
	if k := strings.ToLower(strings.TrimSpace(t.Kind)); k != "" {
		return k
	}
	return DefaultToolKind
}

// IdleTimeoutFor returns the idle window for a tool: its own override, else
// the global setting, else DefaultIdleTimeout. Zero means idle close is
// disabled.
func (c *Config) IdleTimeoutFor(name string) time.Duration {
	if c.SkipIdleClose {
		return 0
	}
	if tool, ok := c.Tools[name]; ok && tool.IdleTimeout != "" {
		if d, err := ParseDuration(tool.IdleTimeout); err == nil {
			return d
		}
	}
	if c.IdleTimeout != "" {
		if d, err := ParseDuration(c.IdleTimeout); err == nil {
			return d
		}
	}
	return DefaultIdleTimeout
}

// RetryDelay returns the configured connect retry delay, or zero if unset.
func (c *Config) RetryDelay() time.Duration {
	if c.ConnectRetryDelay == "" {
		return 0
	}
	d, _ := ParseDuration(c.ConnectRetryDelay)
	return d
}

// CatalogCacheTTL returns how long tool catalogs stay cached, or zero.
func (c *Config) CatalogCacheTTL() time.Duration {
	if c.CatalogTTL == "" {
		return 0
	}
	d, _ := ParseDuration(c.CatalogTTL)
	return d
}

// ListenAddr returns the serve listen address.
func (c *Config) ListenAddr() string {
	if c.Serve.Listen != "" {
		return c.Serve.Listen
	}
	return DefaultListen
}

// Scheme returns the scheme for internal URLs.
func (c *Config) Scheme() string {
	if c.InternalScheme != "" {
		return c.InternalScheme
	}
	return DefaultInternalScheme
}

// ParseDuration accepts Go duration syntax or a bare count of milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}
