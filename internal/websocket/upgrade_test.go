package websocket

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleKey = "dGhlIHNhbXBsZSBub25jZQ=="

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEndpoint(t *testing.T, opts *Options) *Endpoint {
	t.Helper()

	if opts == nil {
		opts = DefaultOptions()
	}
	opts.Logger = testLogger()
	opts.HeartbeatInterval = time.Hour

	e := New(opts)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { e.Stop() })
	return e
}

// sendUpgrade writes a raw upgrade request and returns everything the server
// sent back before closing, or the response head for accepted upgrades.
func sendUpgrade(t *testing.T, addr, path, key string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	fmt.Fprintf(conn, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(conn, "Host: server\r\n")
	fmt.Fprintf(conn, "Upgrade: websocket\r\n")
	fmt.Fprintf(conn, "Connection: Upgrade\r\n")
	fmt.Fprintf(conn, "Sec-WebSocket-Version: 13\r\n")
	if key != "" {
		fmt.Fprintf(conn, "Sec-WebSocket-Key: %s\r\n", key)
	}
	fmt.Fprintf(conn, "\r\n")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	br := bufio.NewReader(conn)

	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if err != nil || line == "\r\n" {
			return sb.String()
		}
	}
}

// TestUpgradeRejectsPathMismatch asserts the exact wire bytes of the
// path-filter rejection
func TestUpgradeRejectsPathMismatch(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, &Options{URLPath: "/ws/stream"})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	got := sendUpgrade(t, srv.Listener.Addr().String(), "/ws", sampleKey)
	want := "HTTP/1.1 400  URL not supported\r\n\r\n"
	if got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

// TestUpgradePathMatchProceeds verifies a matching filter does not terminate
// the connection
func TestUpgradePathMatchProceeds(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, &Options{URLPath: "/ws/stream"})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	got := sendUpgrade(t, srv.Listener.Addr().String(), "/ws/stream", sampleKey)
	if !strings.HasPrefix(got, "HTTP/1.1 101 ") {
		t.Errorf("response = %q, want 101", got)
	}
}

// TestUpgradeQueryStringStripped verifies the filter matches on the bare path
func TestUpgradeQueryStringStripped(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, &Options{URLPath: "/deepstream"})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	got := sendUpgrade(t, srv.Listener.Addr().String(), "/deepstream?token=abc", sampleKey)
	if !strings.HasPrefix(got, "HTTP/1.1 101 ") {
		t.Errorf("response = %q, want 101", got)
	}
}

// TestUpgradeKeyLength checks every invalid key length terminates with the
// literal 400 response and only a 24 character key proceeds
func TestUpgradeKeyLength(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, &Options{})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	lengths := []int{0, 10, 23, 25, 40}
	for _, n := range lengths {
		key := strings.Repeat("a", n)
		got := sendUpgrade(t, srv.Listener.Addr().String(), "/deepstream", key)
		want := "HTTP/1.1 400  Invalid websocket key\r\n\r\n"
		if got != want {
			t.Errorf("key length %d: response = %q, want %q", n, got, want)
		}
	}

	got := sendUpgrade(t, srv.Listener.Addr().String(), "/deepstream", sampleKey)
	if !strings.HasPrefix(got, "HTTP/1.1 101 ") {
		t.Errorf("valid key: response = %q, want 101", got)
	}
}

// TestUpgradeBeforeStart responds with a regular HTTP error, never a panic
func TestUpgradeBeforeStart(t *testing.T) {
	t.Parallel()

	e := New(&Options{Logger: testLogger()})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	got := sendUpgrade(t, srv.Listener.Addr().String(), "/deepstream", sampleKey)
	if !strings.HasPrefix(got, "HTTP/1.1 503 ") {
		t.Errorf("response = %q, want 503", got)
	}
}

// TestRequestPath tests query string and fragment stripping
func TestRequestPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri  string
		want string
	}{
		{"/deepstream", "/deepstream"},
		{"/deepstream?token=abc", "/deepstream"},
		{"/deepstream#frag", "/deepstream"},
		{"/deepstream?a=1#frag", "/deepstream"},
		{"/", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := requestPath(tt.uri); got != tt.want {
			t.Errorf("requestPath(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
