package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Kind is the wire sub-protocol spoken to a tool endpoint.
type Kind string

const (
	KindSocket     Kind = "socket"
	KindHTTPStream Kind = "http-stream"
)

const probeBodyLimit = 64 << 10

// ProbeKind asks baseURL which transport it speaks. A GET whose body
// mentions "websocket" selects KindSocket; any other answer selects
// KindHTTPStream. Request failures are returned as *ConnectError.
func ProbeKind(ctx context.Context, client *http.Client, baseURL string, header http.Header) (Kind, error) {
	if client == nil {
		client = http.DefaultClient
	}
	target := HTTPURL(baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("creating probe request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &ConnectError{URL: target, Attempts: 1, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return "", &ConnectError{URL: target, Attempts: 1, Err: fmt.Errorf("reading probe body: %w", err)}
	}
	if bytes.Contains(bytes.ToLower(body), []byte("websocket")) {
		return KindSocket, nil
	}
	return KindHTTPStream, nil
}
