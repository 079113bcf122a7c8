// Package group implements the connection group: an event-driven multiplexer
// managing many live websocket connections under one set of callbacks.
//
// All callbacks run on a single event-loop goroutine. Work from other
// goroutines (upgrade completion, sends, closes) is posted onto the loop as
// tasks; per-connection read pumps run on their own goroutines but only ever
// post back to the loop. The handle table is therefore touched by exactly one
// goroutine and needs no locking.
package group

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/gobwas/ws"

	"github.com/keus-automation/deepstream.io"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Config is fixed at group creation.
type Config struct {
	// Compression records whether permessage-deflate was requested. The Go
	// transport does not negotiate the extension; the flag is carried for
	// configuration compatibility.
	Compression bool
	// MaxPayloadSize limits a single inbound message, zero means unlimited.
	MaxPayloadSize int64
}

// Handle identifies one live connection inside the group. Handles are opaque
// to callers and never reused within a group's lifetime.
type Handle uint64

type groupConn struct {
	conn net.Conn
	in   io.Reader
	tls  bool

	// req is the upgrade request stashed by the transfer ticket. The
	// connection callback takes it exactly once; it must not leak to the
	// next connection.
	req *http.Request
}

// Group multiplexes live connections on a single event-loop goroutine.
type Group struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	tasks  *queue.Queue
	closed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	// Everything below is owned by the loop goroutine.
	conns       map[Handle]*groupConn
	nextID      uint64
	ticker      *time.Ticker
	pingPayload []byte
	stopping    bool

	onConnection    func(Handle)
	onDisconnection func(Handle, int, string)
	onMessage       func(Handle, []byte)
	onPing          func(Handle, []byte)
	onPong          func(Handle, []byte)
}

// New creates the group and starts its event loop.
func New(cfg Config, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Group{
		cfg:    cfg,
		logger: logger.With("component", "connection_group"),
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		conns:  make(map[Handle]*groupConn),
	}
	go g.run()
	return g
}

// Callback registration. Must happen before the first Transfer; the fields
// are read by the loop without synchronization afterwards.

func (g *Group) OnConnection(fn func(Handle)) { g.onConnection = fn }

func (g *Group) OnDisconnection(fn func(Handle, int, string)) { g.onDisconnection = fn }

func (g *Group) OnMessage(fn func(Handle, []byte)) { g.onMessage = fn }

func (g *Group) OnPing(fn func(Handle, []byte)) { g.onPing = fn }

func (g *Group) OnPong(fn func(Handle, []byte)) { g.onPong = fn }

// StartAutoPing starts the heartbeat broadcast. The payload is built once by
// the caller and reused for every tick.
func (g *Group) StartAutoPing(interval time.Duration, payload []byte) {
	g.post(func() {
		if g.ticker != nil {
			g.ticker.Stop()
		}
		g.pingPayload = payload
		g.ticker = time.NewTicker(interval)
	})
}

// Send writes one text frame to the given handle. The write happens on the
// event loop; an unknown handle is a silent no-op.
func (g *Group) Send(h Handle, data []byte) error {
	if !g.post(func() { g.writeTo(h, data) }) {
		return errors.New(deepstream.ErrGroupClosed)
	}
	return nil
}

// Broadcast writes one text frame to every live connection.
func (g *Group) Broadcast(data []byte) error {
	if !g.post(func() { g.writeAll(data) }) {
		return errors.New(deepstream.ErrGroupClosed)
	}
	return nil
}

// CloseHandle closes one connection, sending a close frame with the given
// code and reason first. The disconnection callback fires on the loop.
func (g *Group) CloseHandle(h Handle, code int, reason string) {
	g.post(func() { g.closeConn(h, code, reason) })
}

// Address returns the remote address of the handle. Loop-only: callable from
// group callbacks.
func (g *Group) Address(h Handle) string {
	if c, ok := g.conns[h]; ok {
		return c.conn.RemoteAddr().String()
	}
	return ""
}

// TakeUpgradeRequest returns the upgrade request stashed for the handle and
// clears it. Loop-only: callable from the connection callback, exactly once.
func (g *Group) TakeUpgradeRequest(h Handle) *http.Request {
	c, ok := g.conns[h]
	if !ok {
		return nil
	}
	req := c.req
	c.req = nil
	return req
}

// Close shuts the loop down, closing every live connection. Idempotent.
func (g *Group) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		<-g.done
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	close(g.quit)
	<-g.done
	return nil
}

// Closed reports whether Close has been called.
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// post queues a task for the loop. Returns false once the group is closed.
func (g *Group) post(task func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.tasks.Add(task)
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
	return true
}

func (g *Group) run() {
	defer close(g.done)

	for {
		var tick <-chan time.Time
		if g.ticker != nil {
			tick = g.ticker.C
		}

		select {
		case <-g.quit:
			g.shutdown()
			return
		case <-g.wake:
			g.drain()
		case <-tick:
			g.writeAll(g.pingPayload)
		}
	}
}

func (g *Group) drain() {
	for {
		g.mu.Lock()
		if g.tasks.Length() == 0 {
			g.mu.Unlock()
			return
		}
		task := g.tasks.Remove().(func())
		g.mu.Unlock()
		task()
	}
}

// shutdown runs on the loop after Close. Tasks posted before the closed flag
// flipped still run, but with stopping set, so in-flight upgrades abandon
// instead of registering on a dead group.
func (g *Group) shutdown() {
	g.stopping = true
	g.drain()

	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
	for h, c := range g.conns {
		c.req = nil
		c.conn.Close()
		delete(g.conns, h)
	}
}

// completeUpgrade makes a transferred descriptor live in the group: it writes
// the 101 handshake response, registers the handle, fires the connection
// callback and starts the read pump. Runs on the loop, after the HTTP-level
// owner released the ticket.
func (g *Group) completeUpgrade(t *Ticket) {
	if g.stopping {
		t.abandon()
		return
	}

	var buf bytes.Buffer
	buf.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	buf.WriteString("Upgrade: websocket\r\n")
	buf.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&buf, "Sec-WebSocket-Accept: %s\r\n", acceptKey(t.key))
	if t.subprotocol != "" {
		fmt.Fprintf(&buf, "Sec-WebSocket-Protocol: %s\r\n", t.subprotocol)
	}
	buf.WriteString("\r\n")

	if _, err := t.conn.Write(buf.Bytes()); err != nil {
		g.logger.Warn("handshake response failed", "err", err)
		t.abandon()
		return
	}

	g.nextID++
	h := Handle(g.nextID)
	c := &groupConn{conn: t.conn, in: t.in, tls: t.tls, req: t.req}
	g.conns[h] = c
	t.finish()

	if g.onConnection != nil {
		g.onConnection(h)
	}
	go g.readPump(h, c)
}

// readPump reads frames off one connection and posts events onto the loop.
// It is the only reader of the connection; the loop is the only writer.
func (g *Group) readPump(h Handle, c *groupConn) {
	var pending []byte

	for {
		hdr, err := ws.ReadHeader(c.in)
		if err != nil {
			g.post(func() { g.dropConn(h, int(ws.StatusAbnormalClosure), err.Error()) })
			return
		}
		if hdr.Length < 0 {
			g.post(func() { g.closeConn(h, int(ws.StatusProtocolError), deepstream.ErrInvalidMessageFormat) })
			return
		}

		// The limit is enforced on the declared length, before a single
		// payload byte is read or buffered. Interleaved control frames do not
		// count against a partially assembled message.
		if g.cfg.MaxPayloadSize > 0 {
			budget := g.cfg.MaxPayloadSize
			switch hdr.OpCode {
			case ws.OpText, ws.OpBinary, ws.OpContinuation:
				budget -= int64(len(pending))
			}
			if hdr.Length > budget {
				g.post(func() { g.closeConn(h, int(ws.StatusMessageTooBig), deepstream.ErrMessageTooBig) })
				return
			}
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(c.in, payload); err != nil {
			g.post(func() { g.dropConn(h, int(ws.StatusAbnormalClosure), err.Error()) })
			return
		}
		if hdr.Masked {
			ws.Cipher(payload, hdr.Mask, 0)
		}

		switch hdr.OpCode {
		case ws.OpPing:
			g.post(func() { g.handlePing(h, payload) })

		case ws.OpPong:
			g.post(func() {
				if g.onPong != nil {
					g.onPong(h, payload)
				}
			})

		case ws.OpClose:
			code, reason := ws.ParseCloseFrameData(payload)
			g.post(func() { g.dropConn(h, int(code), reason) })
			return

		case ws.OpText, ws.OpBinary, ws.OpContinuation:
			if hdr.OpCode != ws.OpContinuation {
				pending = pending[:0]
			}
			pending = append(pending, payload...)
			if hdr.Fin {
				msg := make([]byte, len(pending))
				copy(msg, pending)
				pending = pending[:0]
				g.post(func() {
					if g.onMessage != nil {
						g.onMessage(h, msg)
					}
				})
			}

		default:
			g.post(func() { g.closeConn(h, int(ws.StatusProtocolError), deepstream.ErrInvalidMessageFormat) })
			return
		}
	}
}

// handlePing acknowledges a peer ping at the transport level.
func (g *Group) handlePing(h Handle, payload []byte) {
	c, ok := g.conns[h]
	if !ok {
		return
	}
	if err := ws.WriteFrame(c.conn, ws.NewPongFrame(payload)); err != nil {
		g.dropConn(h, int(ws.StatusAbnormalClosure), err.Error())
		return
	}
	if g.onPing != nil {
		g.onPing(h, payload)
	}
}

func (g *Group) writeTo(h Handle, data []byte) {
	c, ok := g.conns[h]
	if !ok {
		g.logger.Debug("dropping write for unknown handle", "handle", uint64(h))
		return
	}
	if err := ws.WriteFrame(c.conn, ws.NewTextFrame(data)); err != nil {
		g.dropConn(h, int(ws.StatusAbnormalClosure), err.Error())
	}
}

func (g *Group) writeAll(data []byte) {
	if len(data) == 0 {
		return
	}
	var failed []Handle
	for h, c := range g.conns {
		if err := ws.WriteFrame(c.conn, ws.NewTextFrame(data)); err != nil {
			failed = append(failed, h)
		}
	}
	for _, h := range failed {
		g.dropConn(h, int(ws.StatusAbnormalClosure), "write failed")
	}
}

// closeConn closes a connection from our side: close frame first, then drop.
func (g *Group) closeConn(h Handle, code int, reason string) {
	c, ok := g.conns[h]
	if !ok {
		return
	}
	body := ws.NewCloseFrameBody(ws.StatusCode(code), reason)
	_ = ws.WriteFrame(c.conn, ws.NewCloseFrame(body))
	g.dropConn(h, code, reason)
}

// dropConn removes a connection and fires the disconnection callback exactly
// once. Late or duplicate notifications for a gone handle are no-ops.
func (g *Group) dropConn(h Handle, code int, reason string) {
	c, ok := g.conns[h]
	if !ok {
		return
	}
	delete(g.conns, h)
	c.req = nil
	c.conn.Close()

	if g.onDisconnection != nil {
		g.onDisconnection(h, code, reason)
	}
}

// acceptKey computes the Sec-WebSocket-Accept value per RFC6455.
func acceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// tcpConn unwraps TLS wrappers and returns the underlying TCP connection.
func tcpConn(conn net.Conn) (*net.TCPConn, bool) {
	if nc, ok := conn.(interface{ NetConn() net.Conn }); ok {
		conn = nc.NetConn()
	}
	tc, ok := conn.(*net.TCPConn)
	return tc, ok
}
