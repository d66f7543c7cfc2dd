package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
)

var (
	rootStdout   io.Writer = os.Stdout
	rootStderr   io.Writer = os.Stderr
	rootStdin    io.Reader = os.Stdin
	buildVersion           = "dev"
)

func init() {
	buildVersion = resolveBuildVersion(buildVersion)
}

func handleRootFlags(args []string) (bool, int) {
	if len(args) != 1 {
		return false, 0
	}

	switch args[0] {
	case "--version", "-V", "version":
		fmt.Fprintf(rootStdout, "mcpwire %s\n", buildVersion)
		return true, 0
	case "--help", "-h", "help":
		printRootHelp(rootStdout)
		return true, 0
	default:
		return false, 0
	}
}

func resolveBuildVersion(defaultVersion string) string {
	if defaultVersion != "" && defaultVersion != "dev" {
		return defaultVersion
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return defaultVersion
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return defaultVersion
	}
	return info.Main.Version
}

// globalFlags precede the command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var g globalFlags
	for len(args) > 0 {
		arg := args[0]
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			g.configPath = v
			args = args[1:]
			continue
		}
		if v, ok := strings.CutPrefix(arg, "--log-level="); ok {
			g.logLevel = v
			args = args[1:]
			continue
		}

		var dst *string
		switch arg {
		case "--config", "-c":
			dst = &g.configPath
		case "--log-level":
			dst = &g.logLevel
		default:
			return g, args, nil
		}
		if len(args) < 2 {
			return g, nil, fmt.Errorf("missing value for %s", arg)
		}
		*dst = args[1]
		args = args[2:]
	}
	return g, args, nil
}

func printRootHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  mcpwire [GLOBAL FLAGS] [command]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  tools                          List configured tool servers (default)")
	fmt.Fprintln(out, "  list <server> [--json] [--refresh]")
	fmt.Fprintln(out, "                                 List the tools a server exposes")
	fmt.Fprintln(out, "  info <server> <tool> [--json]  Show a tool's description and schemas")
	fmt.Fprintln(out, "  call <server> <tool> [ARGS]    Call a tool; ARGS is a JSON object, '-' or stdin")
	fmt.Fprintln(out, "  serve [--listen ADDR] [--socket] [-- COMMAND ARGS...]")
	fmt.Fprintln(out, "                                 Multiplex WebSocket clients onto one MCP server")
	fmt.Fprintln(out, "  version                        Show version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Global flags:")
	fmt.Fprintln(out, "  --config, -c <path>   Config file (default: $XDG_CONFIG_HOME/mcpwire/config.toml)")
	fmt.Fprintln(out, "  --log-level <level>   trace, debug, info, warn or error")
	fmt.Fprintln(out, "  --help, -h            Show help")
	fmt.Fprintln(out, "  --version, -V         Show version")
}
