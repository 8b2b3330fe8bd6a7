package tls

import (
	"io"
	"net"
	"os"
	"socket-client/transport"
	"time"
)

// netConn presents a [transport.Conn] as a [net.Conn], which is what crypto/tls drives.
type netConn struct {
	c transport.Conn
}

var _ net.Conn = (*netConn)(nil)

func (n *netConn) Read(p []byte) (int, error) {
	nr, err := n.c.Read(p)
	switch {
	case err == nil:
	case transport.IsClosed(err):
		// crypto/tls expects a clean end of stream as io.EOF.
		err = io.EOF
	case transport.IsTimeout(err):
		err = os.ErrDeadlineExceeded
	}
	return nr, err
}

func (n *netConn) Write(p []byte) (int, error) {
	nw, err := n.c.Write(p)
	if transport.IsTimeout(err) {
		err = os.ErrDeadlineExceeded
	}
	return nw, err
}

func (n *netConn) Close() error { return n.c.Close() }

func (n *netConn) LocalAddr() net.Addr  { return n.c.LocalAddr() }
func (n *netConn) RemoteAddr() net.Addr { return n.c.RemoteAddr() }

func (n *netConn) SetDeadline(t time.Time) error {
	n.c.SetReadDeadLine(t)
	n.c.SetWriteDeadLine(t)
	return nil
}

func (n *netConn) SetReadDeadline(t time.Time) error {
	n.c.SetReadDeadLine(t)
	return nil
}

func (n *netConn) SetWriteDeadline(t time.Time) error {
	n.c.SetWriteDeadLine(t)
	return nil
}
