package mux

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownClient means the composite id names a client that is not
	// registered, usually one that already disconnected.
	ErrUnknownClient = errors.New("client not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("multiplexer closed")
)

// RoutingError reports an envelope that could not be delivered to the
// client its id names. The envelope is dropped.
type RoutingError struct {
	ClientID string
	ID       string
	Err      error
}

func (e *RoutingError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("routing id %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("routing id %s to client %s: %v", e.ID, e.ClientID, e.Err)
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}
