package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/internal/group"
	"github.com/keus-automation/deepstream.io/internal/protocol"
)

// OnConnectionFn is called on the event loop for every accepted connection,
// after the socket has been associated with its transport handle. This is the
// place to register the socket's message handler and hand it to routing.
//
// The callback must not block; slow work has to be handed off asynchronously.
type OnConnectionFn = func(socket deepstream.Socket)

// OnDisconnectionFn is called on the event loop after a connection ended and
// its association was cleared. The socket is already dead at this point.
type OnDisconnectionFn = func(socket deepstream.Socket)

// RateLimitConfig defines the per-socket inbound message rate limit.
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a socket may send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration.
// Allows 100 messages per second with burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Options configures a connection endpoint. Immutable after New.
type Options struct {
	// Compression requests permessage-deflate on the connection group.
	Compression bool
	// MaxMessageSize limits a single inbound message in bytes.
	MaxMessageSize int64
	// NoDelay disables Nagle's algorithm on accepted sockets.
	NoDelay bool
	// HeartbeatInterval is the period of the fixed ping broadcast.
	HeartbeatInterval time.Duration
	// URLPath, when set, is an exact-match filter: upgrade requests for any
	// other path are terminated with HTTP 400.
	URLPath string
	// RateLimit is the per-socket inbound limit. Nil means the default.
	RateLimit *RateLimitConfig
	// Logger receives structured diagnostics. Nil means slog.Default().
	Logger *slog.Logger
	// Registry collects the endpoint metrics. Nil means a private registry.
	Registry prometheus.Registerer

	OnConnection    OnConnectionFn
	OnDisconnection OnDisconnectionFn
}

// DefaultOptions returns the options used when New receives nil.
func DefaultOptions() *Options {
	return &Options{
		MaxMessageSize:    1 << 20,
		NoDelay:           true,
		HeartbeatInterval: 30 * time.Second,
		RateLimit:         DefaultRateLimitConfig(),
	}
}

// Endpoint owns the connection group's lifecycle and keeps the
// handle-to-socket association table. It implements
// deepstream.ConnectionEndpoint.
type Endpoint struct {
	opts       *Options
	logger     *slog.Logger
	baseLogger *slog.Logger
	metrics    *metrics

	pingPayload []byte

	mu    sync.Mutex
	group *group.Group

	// sockets is the association table keyed by transport handle. It is
	// touched only from group callbacks, which all run on the group's event
	// loop, plus Stop after the loop has exited. No locking by design.
	sockets map[group.Handle]*Socket
}

// New creates a connection endpoint with the given options.
func New(opts *Options) *Endpoint {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.RateLimit == nil {
		opts.RateLimit = DefaultRateLimitConfig()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Endpoint{
		opts:       opts,
		logger:     logger.With("component", "connection_endpoint"),
		baseLogger: logger,
		metrics:    newMetrics(opts.Registry),
		sockets:    make(map[group.Handle]*Socket),
	}
}

// Start creates the connection group, registers its callbacks and starts the
// heartbeat broadcast. Must be called exactly once per endpoint.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.group != nil {
		return errors.New(deepstream.ErrEndpointAlreadyStarted)
	}

	g := group.New(group.Config{
		Compression:    e.opts.Compression,
		MaxPayloadSize: e.opts.MaxMessageSize,
	}, e.baseLogger)

	g.OnConnection(func(h group.Handle) { e.onConnection(g, h) })
	g.OnDisconnection(func(h group.Handle, code int, reason string) { e.onDisconnection(h, code, reason) })
	g.OnMessage(func(h group.Handle, data []byte) { e.onMessage(g, h, data) })
	g.OnPing(func(group.Handle, []byte) { e.metrics.pingFrames.Inc() })
	g.OnPong(func(group.Handle, []byte) { e.metrics.pongFrames.Inc() })

	// Built once, reused for every broadcast tick.
	e.pingPayload = protocol.Build(deepstream.TopicConnection, deepstream.ActionPing)
	g.StartAutoPing(e.opts.HeartbeatInterval, e.pingPayload)

	e.group = g
	e.logger.Info("connection endpoint started",
		"heartbeat_interval", e.opts.HeartbeatInterval,
		"url_path", e.opts.URLPath)
	return nil
}

// Stop closes the connection group if it exists. Idempotent: stopping twice,
// or before Start, returns nil.
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	g := e.group
	e.mu.Unlock()

	if g == nil {
		return nil
	}
	g.Close()

	// The loop has exited; the association table is safe to clear here.
	e.mu.Lock()
	for h, sock := range e.sockets {
		sock.markClosed()
		delete(e.sockets, h)
	}
	e.mu.Unlock()
	return nil
}

// onConnection runs on the event loop for every connection the group made
// live. It builds the socket from the stashed upgrade request, stores the
// association and notifies upper layers.
func (e *Endpoint) onConnection(g *group.Group, h group.Handle) {
	req := g.TakeUpgradeRequest(h)
	hs := newHandshakeData(g.Address(h), req)

	sock := newSocket(e, g, h, hs)
	e.sockets[h] = sock

	e.metrics.connectionsAccepted.Inc()
	e.metrics.connectionsActive.Inc()
	sock.logger.Debug("connection accepted")

	if e.opts.OnConnection != nil {
		e.opts.OnConnection(sock)
	}
}

// onDisconnection runs on the event loop. It clears the association exactly
// once before releasing any other socket state; late or duplicate
// notifications for an unknown handle are no-ops.
func (e *Endpoint) onDisconnection(h group.Handle, code int, reason string) {
	sock, ok := e.sockets[h]
	if !ok {
		e.logger.Debug("disconnection for unknown handle", "handle", uint64(h))
		return
	}
	delete(e.sockets, h)

	e.metrics.connectionsActive.Dec()
	sock.markClosed()
	sock.logger.Debug("connection closed", "code", code, "reason", reason)

	if e.opts.OnDisconnection != nil {
		e.opts.OnDisconnection(sock)
	}
}

// onMessage runs on the event loop and forwards raw bytes to the associated
// socket. Messages for handles with no association are dropped silently.
func (e *Endpoint) onMessage(g *group.Group, h group.Handle, data []byte) {
	sock, ok := e.sockets[h]
	if !ok {
		e.logger.Debug("dropping message for unknown handle", "handle", uint64(h))
		return
	}

	e.metrics.messagesReceived.Inc()

	if !sock.allowMessage() {
		sock.logger.Warn("rate limit exceeded, closing connection")
		g.CloseHandle(h, closePolicyViolation, deepstream.ErrRateLimitExceeded)
		return
	}
	sock.dispatchMessage(data)
}
