// Package naming derives stable identifiers for tool resources.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashLen is the number of hex characters Hash returns.
const HashLen = 32

// Hash returns a stable identifier for (workspace, kind, name). Inputs are
// lowercased, so hostnames built from it are case-insensitive.
func Hash(workspace, kind, name string) string {
	key := strings.ToLower(workspace) + "-" + strings.ToLower(kind) + "-" + strings.ToLower(name)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:HashLen]
}

// KindPrefix is the hostname label prefix for a resource kind.
func KindPrefix(kind string) string {
	switch strings.ToLower(kind) {
	case "function":
		return "fn"
	case "sandbox":
		return "sbx"
	default:
		return strings.ToLower(kind)
	}
}

// InternalHost builds the cluster-local hostname for a resource.
func InternalHost(workspace, kind, name, domain string) string {
	return KindPrefix(kind) + "-" + Hash(workspace, kind, name) + "." + strings.TrimPrefix(domain, ".")
}

// Collection is the plural path segment for a resource kind in external URLs.
func Collection(kind string) string {
	switch strings.ToLower(kind) {
	case "function":
		return "functions"
	case "sandbox":
		return "sandboxes"
	default:
		return strings.ToLower(kind) + "s"
	}
}
