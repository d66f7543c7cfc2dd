// Package auth supplies credentials attached to tool connections.
package auth

import (
	"context"
	"net/http"
)

// Header names set by Static.
const (
	HeaderWorkspace = "X-Mcpwire-Workspace"
	HeaderEnv       = "X-Mcpwire-Env"
)

// Provider returns the headers for each connect attempt. Authenticate runs
// before connecting and may refresh credentials.
type Provider interface {
	Headers() http.Header
	Authenticate(ctx context.Context) error
}

// Static serves fixed credentials from configuration.
type Static struct {
	APIKey    string
	Workspace string
	Env       string
	Extra     map[string]string
}

// Headers returns a fresh header set on every call.
func (s *Static) Headers() http.Header {
	h := make(http.Header)
	for k, v := range s.Extra {
		h.Set(k, v)
	}
	if s.APIKey != "" {
		h.Set("Authorization", "Bearer "+s.APIKey)
	}
	if s.Workspace != "" {
		h.Set(HeaderWorkspace, s.Workspace)
	}
	if s.Env != "" {
		h.Set(HeaderEnv, s.Env)
	}
	return h
}

// Authenticate is a no-op; static credentials never expire.
func (s *Static) Authenticate(context.Context) error {
	return nil
}

// None sends no credentials.
type None struct{}

func (None) Headers() http.Header { return http.Header{} }

func (None) Authenticate(context.Context) error { return nil }
