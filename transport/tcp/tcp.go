// Package tcp adapts operating system TCP sockets to [transport.Conn].
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9293
package tcp

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"socket-client/transport"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Addr struct {
	ap netip.AddrPort
}

var _ transport.Addr = Addr{}

func NewAddr(ip netip.Addr, port uint16) Addr {
	return Addr{netip.AddrPortFrom(ip.Unmap(), port)}
}

func addrFrom(a net.Addr) transport.Addr {
	if ta, ok := a.(*net.TCPAddr); ok {
		ap := ta.AddrPort()
		return NewAddr(ap.Addr(), ap.Port())
	}
	return nil
}

func (a Addr) IP() netip.Addr  { return a.ap.Addr() }
func (a Addr) Port() uint16    { return a.ap.Port() }
func (a Addr) Network() string { return string(transport.TCP) }
func (a Addr) String() string  { return a.ap.String() }
func (a Addr) IsValid() bool   { return a.ap.IsValid() && a.ap.Port() != 0 }

type Options struct {
	// KeepAlive is passed to [net.Dialer.KeepAlive]. Zero keeps the system default.
	KeepAlive time.Duration
}

type Dialer struct {
	d net.Dialer
}

var _ transport.ConnDialer = (*Dialer)(nil)

func NewDialer(opts Options) *Dialer {
	return &Dialer{d: net.Dialer{KeepAlive: opts.KeepAlive}}
}

// Dial connects to addr. The connect timeout is taken from ctx.
func (d *Dialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	a, ok := addr.(Addr)
	if !ok || !a.IsValid() {
		return nil, errors.Errorf("not a tcp address: %v", addr)
	}

	c, err := d.d.DialContext(ctx, "tcp", a.String())
	if err != nil {
		return nil, translate(err)
	}

	return Wrap(c.(*net.TCPConn)), nil
}

// Listen opens a listener on addr (e.g. "127.0.0.1:0").
func Listen(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}
	return &Listener{l: l}, nil
}

type Listener struct {
	l net.Listener
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Addr() Addr {
	return addrFrom(l.l.Addr()).(Addr)
}

// Accept waits for the next connection. When ctx ends first, the pending
// accept lasts until a peer arrives or the listener is closed, and a
// connection accepted that late is closed.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	type result struct {
		c   net.Conn
		err error
	}
	done := make(chan result)
	go func() {
		c, err := l.l.Accept()
		select {
		case done <- result{c, err}:
		case <-ctx.Done():
			if err == nil {
				c.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, net.ErrClosed) {
				return nil, transport.ErrConnListenerClosed
			}
			return nil, r.err
		}
		return Wrap(r.c.(*net.TCPConn)), nil
	}
}

func (l *Listener) Close() error { return l.l.Close() }

// Conn is a TCP socket with errors mapped onto the transport sentinels.
type Conn struct {
	c *net.TCPConn

	once     sync.Once
	closeErr error
}

var _ transport.Conn = (*Conn)(nil)

func Wrap(c *net.TCPConn) *Conn { return &Conn{c: c} }

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.c.Read(p)
	return n, translate(err)
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.c.Write(p)
	return n, translate(err)
}

// Close is idempotent.
func (c *Conn) Close() error {
	c.once.Do(func() { c.closeErr = c.c.Close() })
	return c.closeErr
}

func (c *Conn) LocalAddr() transport.Addr  { return addrFrom(c.c.LocalAddr()) }
func (c *Conn) RemoteAddr() transport.Addr { return addrFrom(c.c.RemoteAddr()) }

func (c *Conn) SetReadDeadLine(t time.Time)  { _ = c.c.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadLine(t time.Time) { _ = c.c.SetWriteDeadline(t) }

// Info reports kernel statistics of the socket when the platform exposes them.
func (c *Conn) Info() (Info, error) { return socketInfo(c.c) }

type Info struct {
	// RTT is the smoothed round trip time estimated by the kernel.
	RTT time.Duration
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		var sysErr *os.SyscallError
		if errors.As(opErr.Err, &sysErr) {
			switch sysErr.Syscall {
			case "connect":
				return classifyConnect(err)
			}
		}
	}

	return err
}
