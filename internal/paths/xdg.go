package paths

import (
	"os"
	"path/filepath"
)

const appName = "mcpwire"

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// xdgBaseDir returns the base directory named by envVar, or the home-relative
// default. Relative values are invalid under the XDG base directory rules and
// are ignored.
func xdgBaseDir(envVar string, fallback ...string) string {
	if v := os.Getenv(envVar); v != "" && filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(append([]string{homeDir()}, fallback...)...)
}

func appDir(envVar string, fallback ...string) string {
	return filepath.Join(xdgBaseDir(envVar, fallback...), appName)
}

// ConfigDir returns $XDG_CONFIG_HOME/mcpwire.
func ConfigDir() string { return appDir("XDG_CONFIG_HOME", ".config") }

// CacheDir returns $XDG_CACHE_HOME/mcpwire; the catalog cache lives here.
func CacheDir() string { return appDir("XDG_CACHE_HOME", ".cache") }

// StateDir returns $XDG_STATE_HOME/mcpwire.
func StateDir() string { return appDir("XDG_STATE_HOME", ".local", "state") }

// RuntimeDir returns the directory for the serve socket, or StateDir when
// XDG_RUNTIME_DIR is unset. It has no home-relative default of its own.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" && filepath.IsAbs(v) {
		return filepath.Join(v, appName)
	}
	return StateDir()
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SocketPath returns the default Unix socket for "mcpwire serve".
func SocketPath() string {
	return filepath.Join(RuntimeDir(), appName+".sock")
}

// EnsureDir creates a directory and parents if needed, private to the user.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}
