package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lydakis/mcpwire/internal/paths"
	"gopkg.in/yaml.v3"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment overrides applied after the file is read.
const (
	EnvWorkspace         = "MCPWIRE_WORKSPACE"
	EnvAPIKey            = "MCPWIRE_API_KEY"
	EnvRunURL            = "MCPWIRE_RUN_URL"
	EnvInternalHostname  = "MCPWIRE_INTERNAL_HOSTNAME"
	EnvIdleTimeout       = "MCPWIRE_IDLE_TIMEOUT"
	EnvSkipIdleClose     = "MCPWIRE_SKIP_IDLE_CLOSE"
	EnvConnectRetries    = "MCPWIRE_CONNECT_RETRIES"
	EnvConnectRetryDelay = "MCPWIRE_CONNECT_RETRY_DELAY"
	EnvLogLevel          = "MCPWIRE_LOG_LEVEL"
)

// Load reads the default config file. A missing file yields an empty
// Config with environment overrides applied.
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses the config file at path. Files ending in .yaml
// or .yml are decoded as YAML, anything else as TOML.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if cfg.Tools == nil {
		cfg.Tools = make(map[string]ToolConfig)
	}
	expandConfigEnvVars(cfg)
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return nil
}

// ExampleConfigPath returns the default config file path (for help messages).
func ExampleConfigPath() string {
	return paths.ConfigFile()
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvWorkspace, &cfg.Workspace)
	str(EnvAPIKey, &cfg.APIKey)
	str(EnvRunURL, &cfg.RunURL)
	str(EnvInternalHostname, &cfg.InternalHostname)
	str(EnvIdleTimeout, &cfg.IdleTimeout)
	str(EnvConnectRetryDelay, &cfg.ConnectRetryDelay)
	str(EnvLogLevel, &cfg.LogLevel)

	var errs []error
	if v, ok := lookup(EnvSkipIdleClose); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid boolean %q", EnvSkipIdleClose, v))
		} else {
			cfg.SkipIdleClose = b
		}
	}
	if v, ok := lookup(EnvConnectRetries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", EnvConnectRetries, v))
		} else {
			cfg.ConnectRetries = n
		}
	}
	return errors.Join(errs...)
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Workspace = expandEnvVars(cfg.Workspace)
	cfg.RunURL = expandEnvVars(cfg.RunURL)
	cfg.InternalHostname = expandEnvVars(cfg.InternalHostname)
	cfg.APIKey = expandEnvVars(cfg.APIKey)
	for k, v := range cfg.Headers {
		cfg.Headers[k] = expandEnvVars(v)
	}

	for name, tool := range cfg.Tools {
		tool.URL = expandEnvVars(tool.URL)
		for k, v := range tool.Headers {
			tool.Headers[k] = expandEnvVars(v)
		}
		cfg.Tools[name] = tool
	}

	cfg.Serve.Listen = expandEnvVars(cfg.Serve.Listen)
	cfg.Serve.Command = expandEnvVars(cfg.Serve.Command)
	for i := range cfg.Serve.Args {
		cfg.Serve.Args[i] = expandEnvVars(cfg.Serve.Args[i])
	}
	for k, v := range cfg.Serve.Env {
		cfg.Serve.Env[k] = expandEnvVars(v)
	}
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // leave unresolved vars as-is
	})
}
