// Package cache keeps tool catalogs on disk between CLI invocations.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lydakis/mcpwire/internal/paths"
)

type entry struct {
	Server  string          `json:"server"`
	Tools   json.RawMessage `json:"tools"`
	Created time.Time       `json:"created"`
	Expires time.Time       `json:"expires"`
}

// Get returns the cached catalog for server and its age. fingerprint
// identifies the configuration the catalog was fetched with; a changed
// fingerprint misses.
func Get(server, fingerprint string) (json.RawMessage, time.Duration, bool) {
	path := entryPath(server, fingerprint)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Server != server {
		_ = os.Remove(path)
		return nil, 0, false
	}

	now := time.Now()
	if now.After(e.Expires) {
		_ = os.Remove(path)
		return nil, 0, false
	}

	age := now.Sub(e.Created)
	if age < 0 {
		age = 0
	}
	return e.Tools, age, true
}

// Put stores a catalog for ttl.
func Put(server, fingerprint string, tools json.RawMessage, ttl time.Duration) error {
	dir := cacheDir()
	if err := paths.EnsureDir(dir); err != nil {
		return err
	}

	now := time.Now()
	data, err := json.Marshal(entry{
		Server:  server,
		Tools:   tools,
		Created: now,
		Expires: now.Add(ttl),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(entryPath(server, fingerprint), data, 0600)
}

// Invalidate drops the cached catalog, if any.
func Invalidate(server, fingerprint string) error {
	err := os.Remove(entryPath(server, fingerprint))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func entryPath(server, fingerprint string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", server, fingerprint)
	key := hex.EncodeToString(h.Sum(nil))[:32]
	return filepath.Join(cacheDir(), key+".json")
}

func cacheDir() string {
	return filepath.Join(paths.CacheDir(), "catalogs")
}
