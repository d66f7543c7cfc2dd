// Package httpheaders merges header tables from configuration with the
// headers produced by credential providers.
package httpheaders

import (
	"net/http"
	"sort"
	"strings"
)

// Merge applies src entries into dst using case-insensitive key matching.
// When overwrite is false, existing dst entries win.
// When overwrite is true, src entries replace existing keys even if the casing differs.
func Merge(dst map[string]string, src map[string]string, overwrite bool) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}

	for _, key := range sortedKeys(src) {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}

		if existing, ok := lookupKeyFold(dst, name); ok {
			if !overwrite {
				continue
			}
			delete(dst, existing)
		}
		dst[name] = src[key]
	}
	return dst
}

// Apply copies a config header table into h. Values replace existing
// entries only when overwrite is set. A nil h is allocated.
func Apply(h http.Header, src map[string]string, overwrite bool) http.Header {
	if h == nil {
		h = make(http.Header, len(src))
	}
	for _, key := range sortedKeys(src) {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		if !overwrite && h.Get(name) != "" {
			continue
		}
		h.Set(name, src[key])
	}
	return h
}

// Flatten converts h for clients that take one value per header. Repeated
// values are joined with ", ".
func Flatten(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
	}
	return out
}

func sortedKeys(src map[string]string) []string {
	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li := strings.ToLower(strings.TrimSpace(keys[i]))
		lj := strings.ToLower(strings.TrimSpace(keys[j]))
		if li == lj {
			return keys[i] < keys[j]
		}
		return li < lj
	})
	return keys
}

func lookupKeyFold(headers map[string]string, name string) (string, bool) {
	for key := range headers {
		if strings.EqualFold(strings.TrimSpace(key), strings.TrimSpace(name)) {
			return key, true
		}
	}
	return "", false
}
