package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/lydakis/mcpwire/internal/auth"
	"github.com/lydakis/mcpwire/internal/caller"
	"github.com/lydakis/mcpwire/internal/config"
	"github.com/lydakis/mcpwire/internal/mcppool"
	"github.com/lydakis/mcpwire/internal/response"
	"github.com/lydakis/mcpwire/internal/telemetry"
)

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	global, rest, err := parseGlobalFlags(args)
	if err != nil {
		fmt.Fprintf(rootStderr, "mcpwire: %v\n", err)
		return response.ExitUsageErr
	}

	cfg, err := loadConfig(global.configPath)
	if err != nil {
		fmt.Fprintf(rootStderr, "mcpwire: %v\n", err)
		return response.ExitInternal
	}
	if global.logLevel != "" {
		cfg.LogLevel = global.logLevel
	}
	if verr := config.Validate(cfg); verr != nil {
		fmt.Fprintf(rootStderr, "mcpwire: invalid config: %v\n", verr)
		return response.ExitUsageErr
	}

	logger, err := newLogger(cfg.LogLevel, rootStderr)
	if err != nil {
		fmt.Fprintf(rootStderr, "mcpwire: %v\n", err)
		return response.ExitUsageErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:    cfg,
		logger: logger,
		stdout: rootStdout,
		stderr: rootStderr,
		stdin:  rootStdin,
	}
	return a.run(ctx, rest)
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return a.listConfiguredTools()
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "tools":
		return a.listConfiguredTools()
	case "list":
		return a.runList(ctx, rest)
	case "info":
		return a.runInfo(ctx, rest)
	case "call":
		return a.runCall(ctx, rest)
	case "serve":
		return a.runServe(ctx, rest)
	case "version":
		fmt.Fprintf(a.stdout, "mcpwire %s\n", buildVersion)
		return response.ExitOK
	default:
		fmt.Fprintf(a.stderr, "mcpwire: unknown command: %s\n", cmd)
		printRootHelp(a.stderr)
		return response.ExitUsageErr
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})), nil
}

// newCaller builds a pool and a traced caller over it. The returned func
// closes every connection.
func (a *app) newCaller() (*caller.Caller, func()) {
	pool := mcppool.New(mcppool.Options{
		Config: a.cfg,
		Auth: &auth.Static{
			APIKey:    a.cfg.APIKey,
			Workspace: a.cfg.Workspace,
			Env:       a.cfg.Env,
		},
		Logger: a.logger,
	})
	return caller.New(pool, telemetry.NewLogging(a.logger)), pool.CloseAll
}

func (a *app) listConfiguredTools() int {
	if len(a.cfg.Tools) == 0 {
		fmt.Fprintln(a.stdout, "No tools configured.")
		fmt.Fprintf(a.stdout, "Create a config file at %s\n", config.ExampleConfigPath())
		return response.ExitOK
	}
	for _, name := range configuredNames(a.cfg) {
		fmt.Fprintf(a.stdout, "%s\t%s\n", name, a.cfg.Tools[name].ToolKind())
	}
	return response.ExitOK
}

func configuredNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Tools))
	for name := range cfg.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
