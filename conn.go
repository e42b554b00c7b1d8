package mdns

import (
	"net"
	"sync/atomic"
)

// PacketConn is the datagram capability the engine runs on. Sends and the
// receive loop may run concurrently on one PacketConn.
//
// *net.UDPConn satisfies it, as do the sockets returned by Interface and All.
type PacketConn interface {
	// WriteTo sends one datagram to dst.
	WriteTo(b []byte, dst net.Addr) (int, error)
	// ReadFrom blocks until a datagram arrives and copies it into b.
	ReadFrom(b []byte) (int, net.Addr, error)
	// Close releases the socket and unblocks pending reads.
	Close() error
}

// sharedConn is one holder's handle on a reference-counted PacketConn. The
// socket stays open while any handle is open and closes with the last one.
type sharedConn struct {
	conn   PacketConn
	refs   *atomic.Int32
	closed atomic.Bool
}

func share(conn PacketConn) *sharedConn {
	refs := new(atomic.Int32)
	refs.Store(1)
	return &sharedConn{conn: conn, refs: refs}
}

// clone returns a new handle on the same socket.
func (s *sharedConn) clone() *sharedConn {
	s.refs.Add(1)
	return &sharedConn{conn: s.conn, refs: s.refs}
}

func (s *sharedConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	return s.conn.WriteTo(b, dst)
}

func (s *sharedConn) ReadFrom(b []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(b)
}

// Close releases this handle. Closing a handle twice is a no-op. Only the
// last holder closes, and sees the error of, the underlying socket.
func (s *sharedConn) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.refs.Add(-1) > 0 {
		return nil
	}
	return s.conn.Close()
}
