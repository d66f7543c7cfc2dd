package mux

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lydakis/mcpwire/internal/jsonrpc"
)

// idSeparator joins a client id and the client's own request id. Client ids
// are UUIDs, whose alphabet never contains it.
const idSeparator = ":"

var errMalformedID = errors.New("malformed composite id")

// NewClientID returns a fresh process-unique client id.
func NewClientID() string {
	return uuid.NewString()
}

// EncodeID builds the routing key for a request id issued by clientID. The
// original id is kept as raw JSON, so 1 and "1" stay distinct.
func EncodeID(clientID string, id json.RawMessage) string {
	return clientID + idSeparator + string(bytes.TrimSpace(id))
}

// DecodeID splits a routing key at the first separator and returns the
// client id and the original raw JSON id.
func DecodeID(composite string) (string, json.RawMessage, error) {
	clientID, raw, ok := strings.Cut(composite, idSeparator)
	if !ok || clientID == "" || raw == "" {
		return "", nil, fmt.Errorf("%w: %q", errMalformedID, composite)
	}
	id := json.RawMessage(raw)
	if !validOriginalID(id) {
		return "", nil, fmt.Errorf("%w: %q", errMalformedID, composite)
	}
	return clientID, id, nil
}

func validOriginalID(id json.RawMessage) bool {
	if !json.Valid(id) {
		return false
	}
	switch id[0] {
	case '"':
		return true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

// cancelledMethod names the notification whose params.requestId refers to an
// earlier request of the same client.
const cancelledMethod = "notifications/cancelled"

// rewriteInbound replaces env's id with the composite id as a JSON string.
// A cancellation notice gets its params.requestId rewritten the same way.
func rewriteInbound(clientID string, env *jsonrpc.Envelope) *jsonrpc.Envelope {
	if env.Method == cancelledMethod && !env.HasID() {
		return rewriteCancelled(clientID, env)
	}
	if !env.HasID() {
		return env
	}
	out := env.Clone()
	out.ID = jsonrpc.StringID(EncodeID(clientID, env.ID))
	return out
}

// rewriteCancelled leaves params it cannot read untouched.
func rewriteCancelled(clientID string, env *jsonrpc.Envelope) *jsonrpc.Envelope {
	var params map[string]json.RawMessage
	if err := json.Unmarshal(env.Params, &params); err != nil || params == nil {
		return env
	}
	reqID, ok := params["requestId"]
	if !ok || !validOriginalID(bytes.TrimSpace(reqID)) {
		return env
	}
	params["requestId"] = jsonrpc.StringID(EncodeID(clientID, reqID))
	raw, err := json.Marshal(params)
	if err != nil {
		return env
	}
	out := env.Clone()
	out.Params = raw
	return out
}

// restoreOutbound reverses rewriteInbound and reports which client the
// envelope belongs to.
func restoreOutbound(env *jsonrpc.Envelope) (string, *jsonrpc.Envelope, error) {
	if !env.HasID() {
		return "", nil, fmt.Errorf("%w: envelope has no id", errMalformedID)
	}
	var composite string
	if err := json.Unmarshal(env.ID, &composite); err != nil {
		return "", nil, fmt.Errorf("%w: id %s is not a string", errMalformedID, env.ID)
	}
	clientID, id, err := DecodeID(composite)
	if err != nil {
		return "", nil, err
	}
	out := env.Clone()
	out.ID = id
	return clientID, out, nil
}
