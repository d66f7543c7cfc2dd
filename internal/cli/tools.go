package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/lydakis/mcpwire/internal/cache"
	"github.com/lydakis/mcpwire/internal/caller"
	"github.com/lydakis/mcpwire/internal/config"
	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/lydakis/mcpwire/internal/response"
)

// stdinIsTTY is replaced in tests.
var stdinIsTTY = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&fs.ModeCharDevice != 0
}

type listArgs struct {
	json    bool
	refresh bool
	help    bool
}

func parseListArgs(args []string) (string, listArgs, error) {
	var opts listArgs
	var positional []string
	for _, arg := range args {
		switch arg {
		case "--json":
			opts.json = true
		case "--refresh":
			opts.refresh = true
		case "-h", "--help":
			opts.help = true
		default:
			if strings.HasPrefix(arg, "-") {
				return "", opts, fmt.Errorf("unsupported flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}
	if opts.help {
		return "", opts, nil
	}
	if len(positional) != 1 {
		return "", opts, fmt.Errorf("expected exactly one server name")
	}
	return positional[0], opts, nil
}

func (a *app) runList(ctx context.Context, args []string) int {
	server, opts, err := parseListArgs(args)
	if err != nil {
		fmt.Fprintf(a.stderr, "mcpwire list: %v\n", err)
		return response.ExitUsageErr
	}
	if opts.help {
		fmt.Fprintln(a.stdout, "Usage: mcpwire list <server> [--json] [--refresh]")
		return response.ExitOK
	}

	ttl := a.cfg.CatalogCacheTTL()
	fingerprint := catalogFingerprint(a.cfg, server)
	entries, cached := []toolEntry(nil), false
	if ttl > 0 && !opts.refresh {
		entries, cached = a.cachedCatalog(server, fingerprint)
	}

	if !cached {
		c, closeAll := a.newCaller()
		defer closeAll()

		tools, err := c.ListTools(ctx, server)
		if err != nil {
			return a.reportError(server, err)
		}
		entries = entriesFromInfos(tools)
		if ttl > 0 {
			a.storeCatalog(server, fingerprint, entries, ttl)
		}
	}

	if opts.json {
		err = writeToolListJSON(a.stdout, entries)
	} else {
		err = writeToolListText(a.stdout, entries)
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "mcpwire: %v\n", err)
		return response.ExitInternal
	}
	return response.ExitOK
}

func (a *app) cachedCatalog(server, fingerprint string) ([]toolEntry, bool) {
	raw, age, ok := cache.Get(server, fingerprint)
	if !ok {
		return nil, false
	}
	var entries []toolEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		a.logger.Debug("discarding cached catalog", "server", server, "error", err)
		return nil, false
	}
	a.logger.Debug("tool catalog from cache", "server", server, "age", age)
	return entries, true
}

func (a *app) storeCatalog(server, fingerprint string, entries []toolEntry, ttl time.Duration) {
	raw, err := json.Marshal(entries)
	if err == nil {
		err = cache.Put(server, fingerprint, raw, ttl)
	}
	if err != nil {
		a.logger.Warn("caching tool catalog", "server", server, "error", err)
	}
}

// catalogFingerprint changes whenever the settings that pick a server's
// endpoint change.
func catalogFingerprint(cfg *config.Config, server string) string {
	tool := cfg.Tools[server]
	return strings.Join([]string{
		cfg.Workspace, cfg.Env, cfg.RunURL, cfg.InternalHostname, tool.ToolKind(), tool.URL,
	}, "\x00")
}

func (a *app) runInfo(ctx context.Context, args []string) int {
	var asJSON bool
	var positional []string
	for _, arg := range args {
		if arg == "--json" {
			asJSON = true
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) != 2 {
		fmt.Fprintln(a.stderr, "Usage: mcpwire info <server> <tool> [--json]")
		return response.ExitUsageErr
	}
	server, tool := positional[0], positional[1]

	c, closeAll := a.newCaller()
	defer closeAll()

	info, err := c.ToolInfo(ctx, server, tool)
	if err != nil {
		return a.reportError(server, err)
	}
	if asJSON {
		if err := writeToolListJSON(a.stdout, []toolEntry{entryFromInfo(*info)}); err != nil {
			fmt.Fprintf(a.stderr, "mcpwire: %v\n", err)
			return response.ExitInternal
		}
		return response.ExitOK
	}
	printToolInfo(a.stdout, server, *info)
	return response.ExitOK
}

func (a *app) runCall(ctx context.Context, args []string) int {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(a.stderr, "Usage: mcpwire call <server> <tool> [JSON-ARGS | -]")
		return response.ExitUsageErr
	}
	server, tool := args[0], args[1]

	var raw string
	switch {
	case len(args) == 3 && args[2] != "-":
		raw = args[2]
	case len(args) == 3 || !stdinIsTTY(a.stdin):
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			fmt.Fprintf(a.stderr, "mcpwire: reading stdin: %v\n", err)
			return response.ExitUsageErr
		}
		raw = string(data)
	}
	argsJSON, err := parseArgsObject(raw)
	if err != nil {
		fmt.Fprintf(a.stderr, "mcpwire: %v\n", err)
		return response.ExitUsageErr
	}

	c, closeAll := a.newCaller()
	defer closeAll()

	result, err := c.CallTool(ctx, server, tool, argsJSON)
	if err != nil {
		return a.reportError(server, err)
	}

	out, code := response.Render(result)
	if code == response.ExitOK {
		a.stdout.Write(out) //nolint:errcheck
	} else {
		a.stderr.Write(out) //nolint:errcheck
	}
	return code
}

// parseArgsObject checks that raw is empty or a JSON object.
func parseArgsObject(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("invalid JSON arguments: expected an object")
	}
	return json.RawMessage(trimmed), nil
}

// reportError prints err and maps it to an exit code.
func (a *app) reportError(server string, err error) int {
	fmt.Fprintf(a.stderr, "mcpwire: %s: %v\n", server, err)
	var remote *jsonrpc.Error
	switch {
	case errors.As(err, &remote):
		return response.ExitToolErr
	case errors.Is(err, caller.ErrToolNotFound):
		return response.ExitUsageErr
	default:
		return response.ExitInternal
	}
}
