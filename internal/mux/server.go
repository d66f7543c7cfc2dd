package mux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const unixPrefix = "unix:"

// Server serves a handler on a TCP address or, with a "unix:" prefix, on a
// Unix socket restricted to the current user.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	socketPath string
	listener   net.Listener
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a server for addr ("host:port" or "unix:/path").
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger,
	}
}

// ParseListenAddr splits addr into a network and an address for net.Listen.
func ParseListenAddr(addr string) (network, address string) {
	if path, ok := strings.CutPrefix(addr, unixPrefix); ok {
		return "unix", path
	}
	return "tcp", addr
}

// Start begins listening. A stale Unix socket file is removed first.
func (s *Server) Start() error {
	network, address := ParseListenAddr(s.addr)
	if address == "" {
		return fmt.Errorf("empty listen address %q", s.addr)
	}

	var ln net.Listener
	switch network {
	case "unix":
		os.Remove(address)
		l, err := net.Listen("unix", address)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", address, err)
		}
		if err := os.Chmod(address, 0600); err != nil {
			l.Close()
			os.Remove(address)
			return fmt.Errorf("setting socket permissions: %w", err)
		}
		s.socketPath = address
		ln = &peerCheckedListener{Listener: l, logger: s.logger}
	default:
		l, err := net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", address, err)
		}
		ln = l
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "addr", s.addr, "error", err)
		}
	}()
	s.logger.Info("listening", "addr", ln.Addr().String(), "network", network)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting connections and waits for the serve loop. Upgraded
// WebSocket connections are not tracked by http.Server; close the handler
// separately.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	return err
}

type peerCheckedListener struct {
	net.Listener
	logger *slog.Logger
}

// Accept returns the next connection whose peer runs as the current user.
// Other connections are closed.
func (l *peerCheckedListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		ok, err := peerIsCurrentUser(conn)
		if err == nil && ok {
			return conn, nil
		}
		if err != nil {
			l.logger.Warn("peer uid check failed", "error", err)
		} else {
			l.logger.Warn("rejecting connection from another user")
		}
		conn.Close()
	}
}
