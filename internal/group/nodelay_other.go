//go:build !linux

package group

import "net"

// SetNoDelay disables Nagle's algorithm on the TCP connection underneath
// conn, unwrapping a TLS connection first. Connections without a TCP
// descriptor (test pipes) are left alone.
func SetNoDelay(conn net.Conn) error {
	tc, ok := tcpConn(conn)
	if !ok {
		return nil
	}
	return tc.SetNoDelay(true)
}
