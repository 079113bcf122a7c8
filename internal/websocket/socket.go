package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/internal/group"
)

// Websocket close codes used on the socket teardown paths.
const (
	closeNormalClosure   = 1000
	closePolicyViolation = 1008
)

// HandshakeData is the metadata captured once when a connection is accepted.
// Immutable afterwards.
type HandshakeData struct {
	RemoteAddress string
	Headers       map[string]string
	Referer       string
}

// newHandshakeData combines the native address query against the transport
// handle with the upgrade request stashed during the handoff. Header keys are
// lowercased, multiple values joined.
func newHandshakeData(remoteAddr string, req *http.Request) HandshakeData {
	hs := HandshakeData{
		RemoteAddress: remoteAddr,
		Headers:       make(map[string]string),
	}
	if req == nil {
		return hs
	}
	if hs.RemoteAddress == "" {
		hs.RemoteAddress = req.RemoteAddr
	}
	for k, vs := range req.Header {
		hs.Headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	hs.Referer = hs.Headers["referer"]
	return hs
}

// Socket binds one transport handle to its handshake metadata. It is the
// per-connection object handed to upper layers.
//
// The endpoint owns the socket through the association table; the socket
// holds only a non-owning back reference.
type Socket struct {
	id        string
	handle    group.Handle
	handshake HandshakeData
	logger    *slog.Logger

	endpoint *Endpoint
	group    *group.Group

	limiter *rate.Limiter
	alive   atomic.Bool

	mu        sync.Mutex
	onMessage func(data []byte)
}

func newSocket(e *Endpoint, g *group.Group, h group.Handle, hs HandshakeData) *Socket {
	var limiter *rate.Limiter
	if e.opts.RateLimit != nil && e.opts.RateLimit.Enabled {
		limiter = rate.NewLimiter(e.opts.RateLimit.MessagesPerSecond, e.opts.RateLimit.Burst)
	}

	s := &Socket{
		id:        uuid.New().String(),
		handle:    h,
		handshake: hs,
		endpoint:  e,
		group:     g,
		limiter:   limiter,
	}
	s.logger = e.logger.With("socket_id", s.id, "remote_addr", hs.RemoteAddress)
	s.alive.Store(true)
	return s
}

// ID returns the unique identifier generated when the socket was accepted.
func (s *Socket) ID() string {
	return s.id
}

// RemoteAddress returns the peer address captured at handshake time.
func (s *Socket) RemoteAddress() string {
	return s.handshake.RemoteAddress
}

// Headers returns the upgrade request headers captured at handshake time.
func (s *Socket) Headers() map[string]string {
	return s.handshake.Headers
}

// Referer returns the Referer header of the upgrade request, if any.
func (s *Socket) Referer() string {
	return s.handshake.Referer
}

// Handshake returns the full handshake metadata.
func (s *Socket) Handshake() HandshakeData {
	return s.handshake
}

// OnMessage registers the handler for inbound raw messages. The handler runs
// on the connection group's event loop and must not block.
func (s *Socket) OnMessage(handler func(data []byte)) {
	s.mu.Lock()
	s.onMessage = handler
	s.mu.Unlock()
}

// Send writes a raw message to the peer.
func (s *Socket) Send(data []byte) error {
	if !s.alive.Load() {
		return errors.New(deepstream.ErrSocketClosed)
	}
	return s.group.Send(s.handle, data)
}

// Close tears the connection down. The association is cleared on the event
// loop before any other socket state is released; closing an already closed
// socket, or one whose handle the transport already invalidated, is a no-op.
func (s *Socket) Close() error {
	if !s.alive.Load() {
		return nil
	}
	s.group.CloseHandle(s.handle, closeNormalClosure, "")
	return nil
}

// IsAlive reports whether the connection is still live.
func (s *Socket) IsAlive() bool {
	return s.alive.Load()
}

// markClosed flips the socket dead. Called from the endpoint's disconnection
// path, after the association has been cleared.
func (s *Socket) markClosed() {
	s.alive.Store(false)
}

// allowMessage checks the per-socket inbound rate limit.
func (s *Socket) allowMessage() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// dispatchMessage forwards raw bytes to the registered handler. Messages
// arriving before a handler is registered are dropped.
func (s *Socket) dispatchMessage(data []byte) {
	s.mu.Lock()
	handler := s.onMessage
	s.mu.Unlock()

	if handler == nil {
		s.logger.Debug("dropping message, no handler registered", "bytes", len(data))
		return
	}
	handler(data)
}
