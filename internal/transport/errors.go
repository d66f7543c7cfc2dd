package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned when writing to a socket that is not open.
	ErrNotOpen = errors.New("connection is not open")
	// ErrClosed is returned to callers waiting on a connection that closed.
	ErrClosed = errors.New("connection closed")
)

// ConnectError reports a socket that could not be opened after all attempts.
type ConnectError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SendError reports a write attempted on a connection that is not open, or a
// write the socket rejected.
type SendError struct {
	URL string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending to %s: %v", e.URL, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsConnectionFailure reports whether err is a ConnectError, a SendError or
// ErrClosed, the failures a caller may retry on another URL.
func IsConnectionFailure(err error) bool {
	var cerr *ConnectError
	var serr *SendError
	return errors.As(err, &cerr) || errors.As(err, &serr) || errors.Is(err, ErrClosed)
}
