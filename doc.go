// Package deepstream provides the connection-acceptance and transport layer
// for a realtime messaging server.
//
// The package terminates inbound TCP connections, performs the HTTP to
// WebSocket protocol upgrade and hands each accepted socket to a single
// goroutine, event-driven connection group. Every live connection is exposed
// to upper layers as a uniform Socket carrying handshake metadata and
// message/close events.
//
// # Architecture
//
// Three pieces cooperate:
//
//   - The upgrade handler validates an HTTP Upgrade request (exact-match URL
//     path filter, Sec-WebSocket-Key of exactly 24 characters) and arbitrates
//     the handoff of the raw socket from the HTTP listener to the connection
//     group. The handoff is two-phase: a transfer ticket is issued while the
//     HTTP handler still owns the connection, and the actual upgrade runs on
//     the group's event loop only after the HTTP side has relinquished it.
//     At no instant do two owners operate on the same descriptor.
//
//   - The connection group multiplexes all live sockets under one set of
//     callbacks, all of which execute on a single event-loop goroutine. It
//     also drives the heartbeat: one fixed ping frame broadcast to every
//     connection at the configured interval.
//
//   - The connection endpoint owns the group's lifecycle, keeps the
//     handle-to-socket association table and constructs a Socket for every
//     accepted connection.
//
// # Quick Start
//
//	import (
//	    "github.com/keus-automation/deepstream.io/ws"
//	)
//
//	endpoint := ws.New(&ws.Options{
//	    URLPath:           "/deepstream",
//	    HeartbeatInterval: 30 * time.Second,
//	    MaxMessageSize:    1 << 20,
//	    NoDelay:           true,
//	    OnConnection: func(socket deepstream.Socket) {
//	        socket.OnMessage(func(data []byte) {
//	            // hand off to routing, never block here
//	        })
//	    },
//	})
//
//	endpoint.Start()
//	defer endpoint.Stop()
//
//	http.ListenAndServe(":6020", endpoint)
//
// # Wire Protocol
//
// Messages are topic/action/data records separated by ASCII unit separators
// (0x1F) and terminated by an ASCII record separator (0x1E). The heartbeat is
// the fixed frame
//
//	C<US>PI<RS>
//
// built once at start and reused for every broadcast tick. The endpoint
// itself attaches no further meaning to message bytes; routing is an upper
// layer concern.
//
// # Concurrency
//
// All group callbacks (connection, disconnection, message, ping, pong) run on
// one event-loop goroutine and must not block. Slow work has to be handed off
// asynchronously. The association table is touched only from that goroutine,
// so it needs no locking. Stop is the only global cancellation point; an
// upgrade whose deferred completion fires after Stop is silently abandoned.
//
// # Important
//
//   - Socket callbacks execute on the event loop; blocking them stalls every
//     connection in the group.
//   - Handshake rejections are reported only through the literal HTTP error
//     response; nothing surfaces to upper layers.
//   - Messages for sockets without a registered handler are dropped.
package deepstream
