package mux

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseListenAddr(t *testing.T) {
	tests := []struct {
		in, network, address string
	}{
		{"127.0.0.1:8080", "tcp", "127.0.0.1:8080"},
		{":0", "tcp", ":0"},
		{"unix:/tmp/mcpwire.sock", "unix", "/tmp/mcpwire.sock"},
	}
	for _, tt := range tests {
		network, address := ParseListenAddr(tt.in)
		if network != tt.network || address != tt.address {
			t.Fatalf("ParseListenAddr(%q) = (%q, %q), want (%q, %q)", tt.in, network, address, tt.network, tt.address)
		}
	}
}

func TestServerServesMultiplexerOverTCP(t *testing.T) {
	rec := newRecorder()
	m := New(rec.options())
	s := NewServer("127.0.0.1:0", m, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		m.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	id := waitString(t, rec.connected, "OnConnect")
	if !strings.Contains(strings.Join(m.Clients(), ","), id) {
		t.Fatalf("Clients() = %v, missing %s", m.Clients(), id)
	}
}

func TestStartSetsSocketMode0600(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "mcpwire.sock")
	s := NewServer(unixPrefix+socketPath, http.NotFoundHandler(), nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop(context.Background()) //nolint:errcheck

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("socket mode = %o, want %o", got, 0o600)
	}
}

func TestStopRemovesSocketFile(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "mcpwire.sock")
	s := NewServer(unixPrefix+socketPath, http.NotFoundHandler(), nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("socket file still present: %v", err)
	}
}

func TestPeerCheckedListenerRejectsPeerUIDMismatch(t *testing.T) {
	restorePeer := peerIsCurrentUser
	calls := 0
	peerIsCurrentUser = func(conn net.Conn) (bool, error) {
		calls++
		return calls > 1, nil
	}
	defer func() {
		peerIsCurrentUser = restorePeer
	}()

	socketPath := fmt.Sprintf("/tmp/mcpwire-peer-%d.sock", time.Now().UnixNano())
	_ = os.Remove(socketPath)
	defer os.Remove(socketPath) //nolint:errcheck

	inner, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	ln := &peerCheckedListener{Listener: inner, logger: discardLogger()}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	rejected, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial unix: %v", err)
	}
	defer rejected.Close()

	_ = rejected.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf [1]byte
	if _, err := rejected.Read(buf[:]); err == nil {
		t.Fatal("rejected peer connection was not closed")
	}

	allowed, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial unix: %v", err)
	}
	defer allowed.Close()

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("matching peer was not accepted")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
