// Package telemetry is the span interface the tool layer reports through.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, Span)
}

// Span is one timed operation.
type Span interface {
	SetAttribute(key string, value any)
	RecordException(err error)
	End()
}

// Noop discards everything.
type Noop struct{}

func (Noop) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}

func (noopSpan) RecordException(error) {}

func (noopSpan) End() {}

// Logging writes span start and end to a logger at debug level.
type Logging struct {
	Logger *slog.Logger
}

// NewLogging returns a tracer writing to logger, or slog.Default() if nil.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{Logger: logger}
}

func (l *Logging) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, Span) {
	s := &logSpan{
		ctx:    ctx,
		logger: l.Logger,
		name:   name,
		start:  time.Now(),
		attrs:  make(map[string]any, len(attrs)),
	}
	for k, v := range attrs {
		s.attrs[k] = v
	}
	l.Logger.DebugContext(ctx, "span start", s.args()...)
	return ctx, s
}

type logSpan struct {
	ctx    context.Context
	logger *slog.Logger
	name   string
	start  time.Time

	mu    sync.Mutex
	attrs map[string]any
	err   error
	ended bool
}

func (s *logSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *logSpan) RecordException(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *logSpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	err := s.err
	s.mu.Unlock()

	args := append(s.args(), "duration", time.Since(s.start))
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.DebugContext(s.ctx, "span end", args...)
}

func (s *logSpan) args() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	args := make([]any, 0, 2+2*len(s.attrs))
	args = append(args, "span", s.name)
	for k, v := range s.attrs {
		args = append(args, k, v)
	}
	return args
}
