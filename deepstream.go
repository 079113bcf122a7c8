package deepstream

import "net/http"

// ConnectionEndpoint is the transport layer of the realtime server. It accepts
// HTTP upgrade requests, hands the raw sockets to an event-driven connection
// group and surfaces every live connection as a Socket.
//
// Example usage:
//
//	import "github.com/keus-automation/deepstream.io/ws"
//
//	endpoint := ws.New(&ws.Options{
//	    URLPath:           "/deepstream",
//	    HeartbeatInterval: 30 * time.Second,
//	    OnConnection: func(socket deepstream.Socket) {
//	        socket.OnMessage(func(data []byte) {
//	            // route the raw message
//	        })
//	    },
//	})
//
//	endpoint.Start()
//	http.ListenAndServe(":6020", endpoint)
type ConnectionEndpoint interface {
	// Start creates the underlying connection group, registers its callbacks
	// and starts the heartbeat broadcast.
	//
	// Start must be called exactly once per endpoint; a second call returns
	// an error. The endpoint serves no upgrades before Start.
	Start() error

	// Stop closes the connection group and releases every live socket.
	// Stop is idempotent: calling it twice, or before Start, returns nil.
	Stop() error

	// ServeHTTP is the upgrade handler. Mount it on the HTTP listener at the
	// path clients connect to. Requests failing handshake validation receive
	// a literal HTTP error response and never reach the connection group.
	http.Handler
}

// Socket represents one live client connection as seen by upper layers. It
// binds the opaque transport handle to the handshake metadata captured when
// the connection was accepted.
//
// A Socket is created by the endpoint inside the connection callback and
// stays valid until it is closed by either side. All callbacks registered on
// a Socket run on the connection group's event loop and must not block.
type Socket interface {
	// ID returns a unique identifier for the connection, generated at accept
	// time and constant for the connection's lifetime.
	ID() string

	// RemoteAddress returns the peer address captured during the handshake,
	// in "IP:port" form.
	RemoteAddress() string

	// Headers returns the HTTP headers of the upgrade request. The map is
	// captured once at accept time and must not be modified.
	Headers() map[string]string

	// Referer returns the Referer header of the upgrade request, or the
	// empty string if the client sent none.
	Referer() string

	// OnMessage registers the handler for inbound raw messages. Messages
	// arriving before a handler is registered are dropped.
	OnMessage(handler func(data []byte))

	// Send writes a raw message to the peer. Returns an error if the socket
	// is already closed.
	Send(data []byte) error

	// Close tears the connection down. The handle-to-socket association is
	// cleared exactly once; closing an already closed socket is a no-op.
	Close() error

	// IsAlive reports whether the connection is still live.
	IsAlive() bool
}
