package mcppool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
	"github.com/lydakis/mcpwire/internal/transport"
)

// connectTimeout bounds authentication and each candidate URL of a start
// separately, so a hung primary still leaves the fallback its full window.
// Replaced in tests.
var connectTimeout = 30 * time.Second

// State is the lifecycle stage of a tool connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateClosing    State = "closing"
)

// ErrClosed is returned to callers waiting on a start that Close cancelled.
var ErrClosed = errors.New("tool connection closed")

// startFuture is shared by every caller that arrives while a connection is
// being opened.
type startFuture struct {
	done chan struct{}
	conn *connection
	err  error
}

type toolConn struct {
	name        string
	kind        string
	idleTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	transport transport.Kind
	conn      *connection
	start     *startFuture
	inFlight  int

	idleTimer   *time.Timer
	idleTimerID uint64
}

// acquire returns the ready connection for tc, opening it if needed, and
// counts the caller as in flight from the start, so an idle timer cannot
// close a connection someone is waiting for. Concurrent callers share one
// start.
func (p *Pool) acquire(ctx context.Context, tc *toolConn) (*connection, error) {
	tc.mu.Lock()
	tc.inFlight++
	tc.cancelIdleCloseLocked()

	var f *startFuture
	switch tc.state {
	case StateReady:
		conn := tc.conn
		tc.mu.Unlock()
		return conn, nil
	case StateConnecting:
		f = tc.start
	default:
		f = &startFuture{done: make(chan struct{})}
		tc.start = f
		tc.state = StateConnecting
		tc.logger.Debug("opening tool connection")
		go p.runStart(ctx, tc, f)
	}
	tc.mu.Unlock()

	var err error
	select {
	case <-f.done:
		if f.err == nil {
			return f.conn, nil
		}
		err = f.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	p.release(tc, nil, nil)
	return nil, err
}

func (p *Pool) runStart(ctx context.Context, tc *toolConn, f *startFuture) {
	conn, err := p.open(context.WithoutCancel(ctx), tc)

	tc.mu.Lock()
	if tc.start != f {
		// Close ran while connecting.
		tc.mu.Unlock()
		if conn != nil {
			conn.close() //nolint: errcheck
		}
		f.err = fmt.Errorf("tool %s: %w", tc.name, ErrClosed)
		close(f.done)
		return
	}
	tc.start = nil
	if err != nil {
		tc.state = StateIdle
		tc.mu.Unlock()
		tc.logger.Warn("tool connection failed", "error", err)
		f.err = err
		close(f.done)
		return
	}
	tc.conn = conn
	tc.state = StateReady
	if tc.inFlight == 0 {
		p.armIdleCloseLocked(tc)
	}
	tc.mu.Unlock()

	tc.logger.Info("tool connected", "url", conn.url, "transport", string(conn.kind))
	f.conn = conn
	close(f.done)
}

// open authenticates, resolves the target and tries the primary URL, then
// the fallback when the primary could not be reached.
func (p *Pool) open(ctx context.Context, tc *toolConn) (*connection, error) {
	authCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := p.auth.Authenticate(authCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("authenticating %s: %w", tc.name, err)
	}
	t, err := resolveTarget(p.cfg, tc.name, tc.kind)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i, url := range t.urls() {
		if i > 0 {
			tc.logger.Warn("primary unreachable, trying fallback", "primary", t.primary, "fallback", url, "error", lastErr)
		}
		conn, err := p.connectWithin(ctx, tc, url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if !transport.IsConnectionFailure(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// connectWithin gives one candidate URL its own connectTimeout. Running out
// of it counts as a connection failure.
func (p *Pool) connectWithin(ctx context.Context, tc *toolConn, url string) (*connection, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := p.connect(attemptCtx, tc, url)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil && !transport.IsConnectionFailure(err) {
		err = &transport.ConnectError{URL: url, Attempts: 1, Err: err}
	}
	return conn, err
}

// connectURL discovers the transport once per tool, then connects with it.
func (p *Pool) connectURL(ctx context.Context, tc *toolConn, url string) (*connection, error) {
	header := p.headers(tc.name)
	kind, err := p.transportKind(ctx, tc, url, header)
	if err != nil {
		return nil, err
	}
	if kind == transport.KindSocket {
		return p.connectSocket(ctx, url, header, tc.logger, func(conn *connection) {
			p.drop(tc, conn)
		})
	}
	return p.connectHTTP(ctx, url, header)
}

func (p *Pool) transportKind(ctx context.Context, tc *toolConn, url string, header http.Header) (transport.Kind, error) {
	tc.mu.Lock()
	kind := tc.transport
	tc.mu.Unlock()
	if kind != "" {
		return kind, nil
	}

	kind, err := p.probe(ctx, p.httpClient, url, header)
	if err != nil {
		return "", err
	}
	tc.logger.Debug("discovered transport", "transport", string(kind))

	tc.mu.Lock()
	tc.transport = kind
	tc.mu.Unlock()
	return kind, nil
}

// release ends an operation started by acquire. Transport failures discard
// the connection; remote errors and cancellations keep it. The idle timer is
// armed once nothing is in flight.
func (p *Pool) release(tc *toolConn, conn *connection, opErr error) {
	tc.mu.Lock()
	tc.inFlight--
	discard := shouldDiscard(opErr) && tc.conn == conn
	if discard {
		tc.conn = nil
		tc.state = StateIdle
		tc.cancelIdleCloseLocked()
	}
	if tc.inFlight == 0 && tc.state == StateReady {
		p.armIdleCloseLocked(tc)
	}
	tc.mu.Unlock()

	if discard {
		tc.logger.Warn("discarding tool connection", "error", opErr)
		conn.close() //nolint: errcheck
	}
}

func shouldDiscard(err error) bool {
	if err == nil {
		return false
	}
	var remote *jsonrpc.Error
	if errors.As(err, &remote) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// drop forgets conn after the remote end closed it.
func (p *Pool) drop(tc *toolConn, conn *connection) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.conn != conn {
		return
	}
	tc.conn = nil
	tc.state = StateIdle
	tc.cancelIdleCloseLocked()
	tc.logger.Info("tool connection dropped by remote")
}

// shutdown closes the connection and abandons any start in progress.
func (tc *toolConn) shutdown() {
	tc.mu.Lock()
	tc.cancelIdleCloseLocked()
	conn := tc.conn
	tc.conn = nil
	tc.start = nil
	tc.state = StateIdle
	tc.mu.Unlock()

	if conn != nil {
		conn.close() //nolint: errcheck
	}
}
