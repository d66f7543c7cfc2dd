package mcppool

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/lydakis/mcpwire/internal/config"
	"github.com/lydakis/mcpwire/internal/naming"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

// target is where a tool is reached. fallback is empty when it would repeat
// primary.
type target struct {
	primary  string
	fallback string
}

// urls returns the candidates in connect order.
func (t target) urls() []string {
	if t.fallback == "" {
		return []string{t.primary}
	}
	return []string{t.primary, t.fallback}
}

// forcedURLEnv is the variable that pins a tool's URL, for example
// MCPWIRE_FUNCTION_WEB_SEARCH_URL for function "web-search".
func forcedURLEnv(kind, name string) string {
	return "MCPWIRE_" + envToken(kind) + "_" + envToken(name) + "_URL"
}

func envToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// resolveTarget picks the URLs for a tool: a forced override, else the
// internal cluster URL, else the external URL. The external URL is the
// fallback whenever it differs from the primary.
func resolveTarget(cfg *config.Config, name, kind string) (target, error) {
	tool := cfg.Tools[name]
	external := externalURL(cfg, name, kind)

	primary := tool.URL
	if v, ok := lookupEnv(forcedURLEnv(kind, name)); ok && v != "" {
		primary = v
	}
	if primary == "" {
		primary = internalURL(cfg, name, kind)
	}
	if primary == "" {
		primary = external
	}
	if primary == "" {
		return target{}, fmt.Errorf("tool %s: no url configured and neither run_url nor internal_hostname resolves it", name)
	}

	t := target{primary: strings.TrimRight(primary, "/")}
	if external != "" && external != t.primary {
		t.fallback = external
	}
	return t, nil
}

func internalURL(cfg *config.Config, name, kind string) string {
	if cfg.InternalHostname == "" || cfg.Workspace == "" {
		return ""
	}
	return cfg.Scheme() + "://" + naming.InternalHost(cfg.Workspace, kind, name, cfg.InternalHostname)
}

func externalURL(cfg *config.Config, name, kind string) string {
	if cfg.RunURL == "" || cfg.Workspace == "" {
		return ""
	}
	u, err := url.JoinPath(cfg.RunURL, cfg.Workspace, naming.Collection(kind), name)
	if err != nil {
		return ""
	}
	return u
}
