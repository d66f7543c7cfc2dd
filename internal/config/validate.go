package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	if cfg.RunURL != "" {
		errs = append(errs, validateURL("run_url", cfg.RunURL)...)
	}
	if cfg.InternalScheme != "" && cfg.InternalScheme != "http" && cfg.InternalScheme != "https" {
		errs = append(errs, fmt.Errorf("internal_scheme: must be http or https, got %q", cfg.InternalScheme))
	}
	errs = append(errs, validateDuration("idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, validateDuration("connect_retry_delay", cfg.ConnectRetryDelay)...)
	errs = append(errs, validateDuration("catalog_ttl", cfg.CatalogTTL)...)
	if cfg.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connect_retries: must be >= 0, got %d", cfg.ConnectRetries))
	}
	if cfg.ConnectBackoff != 0 && cfg.ConnectBackoff < 1 {
		errs = append(errs, fmt.Errorf("connect_backoff: must be >= 1, got %v", cfg.ConnectBackoff))
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	for i, origin := range cfg.Serve.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("serve.allowed_origins[%d]: want scheme://host[:port] or \"*\", got %q", i, origin))
		}
	}

	names := make([]string, 0, len(cfg.Tools))
	for name := range cfg.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errs = append(errs, validateTool(cfg, name, cfg.Tools[name])...)
	}

	return errors.Join(errs...)
}

func validateTool(cfg *Config, name string, tool ToolConfig) []error {
	var errs []error
	field := "tools." + name

	if strings.ContainsAny(name, " /:") {
		errs = append(errs, fmt.Errorf("%s: name must not contain spaces, '/' or ':'", field))
	}
	switch tool.ToolKind() {
	case KindFunction, KindSandbox:
	default:
		errs = append(errs, fmt.Errorf("%s.kind: must be %q or %q, got %q", field, KindFunction, KindSandbox, tool.Kind))
	}

	if tool.URL != "" {
		errs = append(errs, validateURL(field+".url", tool.URL)...)
	} else if cfg.RunURL == "" && cfg.InternalHostname == "" {
		errs = append(errs, fmt.Errorf("%s: no url, and neither run_url nor internal_hostname is set", field))
	} else if cfg.Workspace == "" {
		errs = append(errs, fmt.Errorf("%s: workspace is required to resolve the tool URL", field))
	}

	errs = append(errs, validateDuration(field+".idle_timeout", tool.IdleTimeout)...)
	return errs
}

func validateURL(field, raw string) []error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid URL %q: %w", field, raw, err)}
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	default:
		return []error{fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)}
	}
}

func validateDuration(field, raw string) []error {
	if raw == "" {
		return nil
	}
	d, err := ParseDuration(raw)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)}
	}
	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %q", field, raw)}
	}
	return nil
}
