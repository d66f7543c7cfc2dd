package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

const (
	maxLineSize     = 32 << 20
	stopGracePeriod = 3 * time.Second
)

// StdioOptions configures a subprocess relay.
type StdioOptions struct {
	Command string
	Args    []string
	// Env is added to the current environment.
	Env    map[string]string
	Router Router
	Logger *slog.Logger
}

// Stdio relays envelopes to an MCP server subprocess speaking
// newline-delimited JSON-RPC on stdin and stdout.
type Stdio struct {
	router Router
	logger *slog.Logger
	cmd    *exec.Cmd

	writeMu sync.Mutex
	stdin   io.WriteCloser

	done    chan struct{}
	waitErr error
	stopped sync.Once
}

// StartStdio launches the subprocess and begins relaying its output.
func StartStdio(opts StdioOptions) (*Stdio, error) {
	if opts.Command == "" {
		return nil, errors.New("stdio relay: command is required")
	}
	if opts.Router == nil {
		return nil, errors.New("stdio relay: router is required")
	}
	if err := CheckCommand(opts.Command, opts.Args); err != nil {
		return nil, fmt.Errorf("stdio relay: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio relay: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdio relay: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("stdio relay: starting %s: %w", opts.Command, err)
	}

	s := &Stdio{
		router: opts.Router,
		logger: logger.With("relay", "stdio", "command", opts.Command, "pid", cmd.Process.Pid),
		cmd:    cmd,
		stdin:  stdin,
		done:   make(chan struct{}),
	}
	go s.readLoop(stdout)
	return s, nil
}

// HandleMessage writes env to the subprocess as one line.
func (s *Stdio) HandleMessage(_ context.Context, clientID string, env *jsonrpc.Envelope) {
	frame, err := jsonrpc.Marshal(env)
	if err != nil {
		s.logger.Warn("dropping unencodable envelope", "client", clientID, "error", err)
		return
	}
	frame = append(frame, '\n')

	s.writeMu.Lock()
	_, err = s.stdin.Write(frame)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("writing to subprocess failed", "client", clientID, "method", env.Method, "error", err)
	}
}

func (s *Stdio) readLoop(stdout io.Reader) {
	defer func() {
		s.waitErr = s.cmd.Wait()
		close(s.done)
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := jsonrpc.Parse(line)
		if err != nil {
			s.logger.Warn("dropping invalid frame from subprocess", "error", err)
			continue
		}
		if !env.HasID() {
			s.logger.Debug("dropping unroutable notification", "method", env.Method)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.router.Send(ctx, env); err != nil {
			s.logger.Debug("routing response failed", "error", err)
		}
		cancel()
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("reading subprocess output failed", "error", err)
	}
}

// Done is closed when the subprocess exits.
func (s *Stdio) Done() <-chan struct{} {
	return s.done
}

// Err returns the subprocess exit error once Done is closed.
func (s *Stdio) Err() error {
	select {
	case <-s.done:
		return s.waitErr
	default:
		return nil
	}
}

// Close closes the subprocess's stdin and waits for it to exit, killing it
// after a grace period or when ctx ends.
func (s *Stdio) Close(ctx context.Context) error {
	s.stopped.Do(func() {
		s.writeMu.Lock()
		s.stdin.Close()
		s.writeMu.Unlock()
	})

	timer := time.NewTimer(stopGracePeriod)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	<-s.done
	return nil
}
