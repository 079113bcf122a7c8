package group

import (
	"io"
	"net"
	"net/http"
	"sync/atomic"
)

// TicketState tracks one pending upgrade through the two-phase handoff.
type TicketState int32

const (
	// TicketRequested: handoff requested, descriptor still with the HTTP owner.
	TicketRequested TicketState = iota
	// TicketIssued: Transfer ran, the ticket holds the descriptor.
	TicketIssued
	// TicketAwaitingClose: upgrade parameters recorded, waiting for the
	// HTTP-level owner to relinquish.
	TicketAwaitingClose
	// TicketUpgraded: descriptor is live in the group.
	TicketUpgraded
	// TicketAbandoned: the group closed (or the handoff broke) before the
	// upgrade could complete; the descriptor was closed.
	TicketAbandoned
)

// Ticket represents a socket descriptor mid-handoff between the HTTP listener
// and the connection group. It is the only owner of the connection between
// Transfer and either the upgrade completion or abandonment.
type Ticket struct {
	group *Group

	conn net.Conn
	in   io.Reader
	tls  bool
	req  *http.Request

	key         string
	subprotocol string

	state atomic.Int32
}

// Transfer takes ownership of a raw connection from the HTTP listener and
// returns the ticket for the pending handoff. The request is stashed so the
// forthcoming connection callback can retrieve the handshake headers.
//
// in is the reader to consume frames from; it differs from conn only when the
// HTTP listener had already buffered bytes past the request.
func (g *Group) Transfer(conn net.Conn, in io.Reader, tlsActive bool, req *http.Request) *Ticket {
	if in == nil {
		in = conn
	}
	t := &Ticket{
		group: g,
		conn:  conn,
		in:    in,
		tls:   tlsActive,
		req:   req,
	}
	t.state.Store(int32(TicketIssued))
	return t
}

// Upgrade records the handshake parameters to complete the upgrade with. The
// actual upgrade is deferred until Release confirms the HTTP-level owner has
// relinquished the descriptor.
func (t *Ticket) Upgrade(key, subprotocol string) {
	t.key = key
	t.subprotocol = subprotocol
	t.state.Store(int32(TicketAwaitingClose))
}

// Release is the HTTP-level close event: the former owner is done with the
// descriptor and the group may make it live. If the group has closed in the
// meantime the ticket is silently abandoned.
func (t *Ticket) Release() {
	if TicketState(t.state.Load()) != TicketAwaitingClose {
		t.abandon()
		return
	}
	if !t.group.post(func() { t.group.completeUpgrade(t) }) {
		t.abandon()
	}
}

// State returns the ticket's current handoff state.
func (t *Ticket) State() TicketState {
	return TicketState(t.state.Load())
}

func (t *Ticket) finish() {
	t.req = nil
	t.state.Store(int32(TicketUpgraded))
}

func (t *Ticket) abandon() {
	if TicketState(t.state.Load()) == TicketAbandoned {
		return
	}
	t.state.Store(int32(TicketAbandoned))
	t.req = nil
	t.conn.Close()
}
