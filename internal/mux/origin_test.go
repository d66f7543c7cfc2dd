package mux

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func dialWithOrigin(srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestForeignOriginIsForbidden(t *testing.T) {
	_, srv := startMux(t, newRecorder().options())

	conn, resp, err := dialWithOrigin(srv, "https://evil.example")
	if err == nil {
		conn.Close()
		t.Fatal("dial with foreign Origin succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %v, want 403", resp)
	}
}

func TestOriginsAcceptedByDefaultChecker(t *testing.T) {
	rec := newRecorder()
	opts := rec.options()
	opts.AllowedOrigins = []string{"https://App.Example/"}
	_, srv := startMux(t, opts)

	for _, origin := range []string{"", srv.URL, "https://app.example"} {
		conn, resp, err := dialWithOrigin(srv, origin)
		if err != nil {
			t.Fatalf("dial with Origin %q error = %v (resp=%v)", origin, err, resp)
		}
		waitString(t, rec.connected, "OnConnect")
		conn.Close()
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{nil, "", "127.0.0.1:7337", true},
		{nil, "http://127.0.0.1:7337", "127.0.0.1:7337", true},
		{nil, "http://localhost:7337", "127.0.0.1:7337", false},
		{nil, "https://evil.example", "127.0.0.1:7337", false},
		{[]string{"https://ide.example"}, "https://ide.example", "127.0.0.1:7337", true},
		{[]string{"https://ide.example"}, "https://ide.example.evil", "127.0.0.1:7337", false},
		{[]string{"*"}, "https://anything.example", "127.0.0.1:7337", true},
		{nil, "://bad", "127.0.0.1:7337", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := originChecker(tt.allowed)(r); got != tt.want {
			t.Fatalf("originChecker(%v)(%q on %s) = %v, want %v", tt.allowed, tt.origin, tt.host, got, tt.want)
		}
	}
}
