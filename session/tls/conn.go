package tls

import (
	stdtls "crypto/tls"
	"io"
	"net"
	"os"
	"socket-client/transport"
	"time"

	"github.com/pkg/errors"
)

var ErrSessionClosed = errors.Wrap(transport.ErrConnClosed, "tls session is closed")

// Conn is an established TLS session.
type Conn struct {
	tc         *stdtls.Conn
	underlying transport.Conn
}

var _ transport.Conn = (*Conn)(nil)

func (conn *Conn) LocalAddr() transport.Addr    { return conn.underlying.LocalAddr() }
func (conn *Conn) RemoteAddr() transport.Addr   { return conn.underlying.RemoteAddr() }
func (conn *Conn) SetReadDeadLine(t time.Time)  { conn.underlying.SetReadDeadLine(t) }
func (conn *Conn) SetWriteDeadLine(t time.Time) { conn.underlying.SetWriteDeadLine(t) }

// Underlying returns the transport the session runs on.
func (conn *Conn) Underlying() transport.Conn { return conn.underlying }

func (conn *Conn) Read(p []byte) (int, error) {
	n, err := conn.tc.Read(p)
	return n, fromTLS(err)
}

func (conn *Conn) Write(p []byte) (int, error) {
	n, err := conn.tc.Write(p)
	return n, fromTLS(err)
}

// Close sends close_notify and always closes the underlying transport.
// A peer that already went away is not an error.
func (conn *Conn) Close() error {
	err := fromTLS(conn.tc.Close())
	if err == nil || transport.IsClosed(err) || transport.IsTimeout(err) {
		return nil
	}
	return errors.Wrap(err, "closing tls session")
}

type State struct {
	Version     string
	CipherSuite string
	ServerName  string
	Protocol    string // negotiated ALPN protocol, if any.
}

func (conn *Conn) State() State {
	cs := conn.tc.ConnectionState()
	return State{
		Version:     stdtls.VersionName(cs.Version),
		CipherSuite: stdtls.CipherSuiteName(cs.CipherSuite),
		ServerName:  cs.ServerName,
		Protocol:    cs.NegotiatedProtocol,
	}
}

// fromTLS maps errors surfaced by crypto/tls back to transport sentinels.
func fromTLS(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return transport.ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	case errors.Is(err, net.ErrClosed):
		return ErrSessionClosed
	}
	return err
}
