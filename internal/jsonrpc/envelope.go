// Package jsonrpc holds the JSON-RPC 2.0 envelope shared by the client
// transport, the multiplexer and the relays. Method names and params are
// opaque here; only the fields needed to frame and route a message are
// interpreted.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only accepted value of the jsonrpc member.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Envelope is one JSON-RPC frame: a request, a notification or a response.
// ID keeps the raw JSON of the id so numbers and strings survive a round
// trip through the multiplexer unchanged.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasID reports whether the envelope carries a non-null id.
func (e *Envelope) HasID() bool {
	return len(e.ID) > 0 && !bytes.Equal(bytes.TrimSpace(e.ID), []byte("null"))
}

// IsRequest reports whether the envelope is a request (method and id).
func (e *Envelope) IsRequest() bool {
	return e.Method != "" && e.HasID()
}

// IsNotification reports whether the envelope is a notification (method, no id).
func (e *Envelope) IsNotification() bool {
	return e.Method != "" && !e.HasID()
}

// IsResponse reports whether the envelope is a response (no method).
func (e *Envelope) IsResponse() bool {
	return e.Method == ""
}

// Clone returns a copy whose id can be rewritten without touching e.
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.ID = append(json.RawMessage(nil), e.ID...)
	return &c
}

// Error is a JSON-RPC error object. Remote errors are handed back to callers
// exactly as the peer sent them.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ProtocolError reports a frame that is not a valid JSON-RPC 2.0 envelope.
type ProtocolError struct {
	Frame []byte
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid JSON-RPC frame: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Parse decodes and validates one frame.
func Parse(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &ProtocolError{Frame: truncate(frame), Err: err}
	}
	if err := Validate(&env); err != nil {
		return nil, &ProtocolError{Frame: truncate(frame), Err: err}
	}
	return &env, nil
}

// Validate checks the envelope shape.
func Validate(env *Envelope) error {
	if env.JSONRPC != Version {
		return fmt.Errorf("jsonrpc version %q, want %q", env.JSONRPC, Version)
	}
	if env.HasID() {
		if err := validateID(env.ID); err != nil {
			return err
		}
	}

	if env.Method != "" {
		if env.Result != nil || env.Error != nil {
			return errors.New("request carries result or error")
		}
		return nil
	}

	if env.Result != nil && env.Error != nil {
		return errors.New("response carries both result and error")
	}
	if env.Result == nil && env.Error == nil {
		return errors.New("frame has neither method nor result/error")
	}
	if !env.HasID() && env.Error == nil {
		return errors.New("result response without id")
	}
	return nil
}

func validateID(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	switch v.(type) {
	case string, float64:
		return nil
	default:
		return fmt.Errorf("id must be a string or number, got %s", raw)
	}
}

// Marshal encodes an envelope, filling in the version.
func Marshal(env *Envelope) ([]byte, error) {
	if env.JSONRPC == "" {
		env.JSONRPC = Version
	}
	return json.Marshal(env)
}

// NumberID returns the raw JSON for a numeric id.
func NumberID(n int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(n, 10))
}

// StringID returns the raw JSON for a string id.
func StringID(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// NewRequest builds a request; params are marshaled unless already raw.
func NewRequest(id json.RawMessage, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification.
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResult builds a success response.
func NewResult(id json.RawMessage, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Envelope{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id json.RawMessage, code int, message string) *Envelope {
	return &Envelope{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		return raw, nil
	}
}

func truncate(frame []byte) []byte {
	const max = 256
	if len(frame) <= max {
		return append([]byte(nil), frame...)
	}
	return append([]byte(nil), frame[:max]...)
}
