//go:build linux

package group

import (
	"net"

	"golang.org/x/sys/unix"
)

// SetNoDelay disables Nagle's algorithm on the raw descriptor underneath
// conn, unwrapping a TLS connection first. Connections without a TCP
// descriptor (test pipes) are left alone.
func SetNoDelay(conn net.Conn) error {
	tc, ok := tcpConn(conn)
	if !ok {
		return nil
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}); err != nil {
		return err
	}
	return serr
}
