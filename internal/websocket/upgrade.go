package websocket

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/internal/group"
)

// ServeHTTP is the upgrade handler. It validates the handshake, takes the raw
// connection away from the HTTP listener and arbitrates the two-phase handoff
// into the connection group.
//
// Requests failing validation receive the literal response
//
//	HTTP/1.1 <code>  <reason>\r\n\r\n
//
// and are closed; nothing surfaces to upper layers.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	g := e.group
	e.mu.Unlock()

	if g == nil || g.Closed() {
		http.Error(w, deepstream.ErrEndpointNotStarted, http.StatusServiceUnavailable)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		e.logger.Error("listener does not support hijacking")
		http.Error(w, deepstream.ErrUpgradeNotSupported, http.StatusInternalServerError)
		return
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		e.logger.Error("hijack failed", "err", err)
		return
	}
	// The HTTP server may leave its own deadlines on the descriptor.
	conn.SetDeadline(time.Time{})

	// Exact-match path filter. A mismatch terminates; a match (or an
	// unconfigured filter) proceeds to the upgrade.
	if e.opts.URLPath != "" && requestPath(r.RequestURI) != e.opts.URLPath {
		e.metrics.upgradesRejected.WithLabelValues("path").Inc()
		terminate(conn, http.StatusBadRequest, deepstream.ReasonURLNotSupported)
		return
	}

	// A valid key is the canonical base64 encoding of a 16 byte nonce,
	// exactly 24 characters.
	key := r.Header.Get("Sec-WebSocket-Key")
	if len(key) != deepstream.WebsocketKeyLength {
		e.metrics.upgradesRejected.WithLabelValues("key").Inc()
		terminate(conn, http.StatusBadRequest, deepstream.ReasonInvalidKey)
		return
	}

	if e.opts.NoDelay {
		if err := group.SetNoDelay(conn); err != nil {
			e.logger.Warn("could not set nodelay", "err", err)
		}
	}

	// The listener may have buffered bytes past the request; the group must
	// consume those before reading the descriptor directly.
	var in io.Reader = conn
	if brw != nil && brw.Reader.Buffered() > 0 {
		in = brw.Reader
	}

	// The handler returning is the HTTP-level close event. Only the release
	// makes the descriptor live in the group, so the two owners never touch
	// it concurrently.
	ticket := g.Transfer(conn, in, r.TLS != nil, r)
	defer ticket.Release()

	ticket.Upgrade(key, r.Header.Get("Sec-WebSocket-Protocol"))
}

// requestPath strips query string and fragment from a request URI.
func requestPath(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return uri
}

// terminate writes the literal rejection response and ends the connection.
func terminate(conn net.Conn, code int, reason string) {
	fmt.Fprintf(conn, "HTTP/1.1 %d  %s\r\n\r\n", code, reason)
	conn.Close()
}
