package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lydakis/mcpwire/internal/gateway"
	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/lydakis/mcpwire/internal/mux"
	"github.com/lydakis/mcpwire/internal/paths"
	"github.com/lydakis/mcpwire/internal/relay"
	"github.com/lydakis/mcpwire/internal/response"
)

const shutdownTimeout = 5 * time.Second

// serveReady is called with the bound address once serve is listening.
var serveReady = func(string) {}

type serveArgs struct {
	listen  string
	socket  bool
	command string
	args    []string
	help    bool
}

func parseServeArgs(args []string) (serveArgs, error) {
	var parsed serveArgs
loop:
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			if i+1 >= len(args) {
				return parsed, fmt.Errorf("missing command after --")
			}
			parsed.command = args[i+1]
			parsed.args = args[i+2:]
			break loop
		case arg == "--socket":
			parsed.socket = true
		case arg == "-h" || arg == "--help":
			parsed.help = true
		case arg == "--listen":
			if i+1 >= len(args) {
				return parsed, fmt.Errorf("missing value for --listen")
			}
			i++
			parsed.listen = args[i]
		case strings.HasPrefix(arg, "--listen="):
			parsed.listen = strings.TrimPrefix(arg, "--listen=")
		default:
			return parsed, fmt.Errorf("unsupported argument: %s", arg)
		}
	}
	if parsed.socket && parsed.listen != "" {
		return parsed, fmt.Errorf("--socket and --listen are mutually exclusive")
	}
	return parsed, nil
}

// runServe accepts WebSocket clients and multiplexes them onto one upstream:
// a subprocess speaking MCP over stdio when a command is given, otherwise an
// in-process gateway publishing the configured tools.
func (a *app) runServe(ctx context.Context, args []string) int {
	opts, err := parseServeArgs(args)
	if err != nil {
		fmt.Fprintf(a.stderr, "mcpwire serve: %v\n", err)
		return response.ExitUsageErr
	}
	if opts.help {
		fmt.Fprintln(a.stdout, "Usage: mcpwire serve [--listen ADDR | --socket] [-- COMMAND ARGS...]")
		return response.ExitOK
	}

	listen := opts.listen
	if opts.socket {
		if err := paths.EnsureDir(paths.RuntimeDir()); err != nil {
			fmt.Fprintf(a.stderr, "mcpwire serve: %v\n", err)
			return response.ExitInternal
		}
		listen = "unix:" + paths.SocketPath()
	}
	if listen == "" {
		listen = a.cfg.ListenAddr()
	}
	command, commandArgs := opts.command, opts.args
	if command == "" {
		command, commandArgs = a.cfg.Serve.Command, a.cfg.Serve.Args
	}

	logger := a.logger.With("component", "serve")

	// The multiplexer and its upstream refer to each other.
	var upstream mux.Handler
	m := mux.New(mux.Options{
		Handler: mux.HandlerFunc(func(ctx context.Context, clientID string, env *jsonrpc.Envelope) {
			upstream.HandleMessage(ctx, clientID, env)
		}),
		Logger:         logger,
		AllowedOrigins: a.cfg.Serve.AllowedOrigins,
		OnConnect:      func(id string) { logger.Info("client connected", "client", id) },
		OnDisconnect:   func(id string) { logger.Info("client disconnected", "client", id) },
		OnError: func(id string, err error) {
			logger.Warn("invalid client frame", "client", id, "error", err)
		},
	})

	var upstreamDone <-chan struct{}
	cleanup := func() {}
	if command != "" {
		s, err := relay.StartStdio(relay.StdioOptions{
			Command: command,
			Args:    commandArgs,
			Env:     a.cfg.Serve.Env,
			Router:  m,
			Logger:  logger,
		})
		if err != nil {
			fmt.Fprintf(a.stderr, "mcpwire serve: %v\n", err)
			return response.ExitInternal
		}
		upstream = s
		upstreamDone = s.Done()
		cleanup = func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.Close(stopCtx) //nolint:errcheck
		}
	} else {
		c, closeAll := a.newCaller()
		srv, n := gateway.New(ctx, c, configuredNames(a.cfg), buildVersion, logger)
		logger.Info("gateway ready", "tools", n)
		p := relay.NewInProcess(srv, m, logger)
		upstream = p
		cleanup = func() {
			p.Wait()
			closeAll()
		}
	}

	httpServer := mux.NewServer(listen, m, logger)
	if err := httpServer.Start(); err != nil {
		cleanup()
		fmt.Fprintf(a.stderr, "mcpwire serve: %v\n", err)
		return response.ExitInternal
	}
	addr := httpServer.Addr().String()
	logger.Info("serving", "addr", addr, "upstream", upstreamName(command))
	serveReady(addr)

	code := response.ExitOK
	select {
	case <-ctx.Done():
	case <-upstreamDone:
		logger.Error("upstream exited")
		code = response.ExitInternal
	}

	m.Close() //nolint:errcheck
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Stop(stopCtx); err != nil {
		logger.Warn("stopping server", "error", err)
	}
	cleanup()
	return code
}

func upstreamName(command string) string {
	if command == "" {
		return "gateway"
	}
	return command
}
