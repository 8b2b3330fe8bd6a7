package client

import (
	"bytes"
	"io"
	"log/slog"
	"socket-client/application/http"
	"socket-client/application/util/target"
	iolib "socket-client/lib/io"
	"socket-client/session/tls"
	"socket-client/transport"
	"socket-client/transport/tcp"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Conn is a connection owned by exactly one exchange.
type Conn struct {
	// con carries the exchange. It is session when the target is secure, raw otherwise.
	con     transport.Conn
	raw     transport.Conn
	session *tls.Conn

	target        target.Target
	local, remote transport.Addr

	opts   Options
	logger *slog.Logger
	clock  clock.Clock

	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) inspect() error {
	c.local = c.con.LocalAddr()
	c.remote = c.con.RemoteAddr()

	switch {
	case c.local == nil:
		return errors.New("local endpoint is unavailable")
	case c.remote == nil:
		return errors.New("remote endpoint is unavailable")
	}
	return nil
}

func (c *Conn) Target() target.Target      { return c.target }
func (c *Conn) LocalAddr() transport.Addr  { return c.local }
func (c *Conn) RemoteAddr() transport.Addr { return c.remote }
func (c *Conn) IsSecure() bool             { return c.session != nil }

// Send writes the whole request. Nothing is retried.
func (c *Conn) Send(request http.Request) (int, error) {
	var buf bytes.Buffer
	if err := http.NewRequestEncoder(&buf, c.opts.Send.Encode).Encode(request); err != nil {
		return 0, errors.Wrap(err, "encoding request")
	}

	n, err := iolib.WriteFull(c.con, buf.Bytes())
	if err != nil {
		return n, classify(ErrSocket, errors.Wrap(err, "writing request"))
	}

	c.logger.Debug("request sent", slog.Int("bytes", n))
	return n, nil
}

// Accumulate reads until the peer closes or the read timeout passes without data.
// Every read gets a fresh deadline, so the timeout bounds silence, not the whole response.
//
// A timeout is not an error; it is reported by [Response.TimedOut].
// Any other fault returns what was read so far with [ErrSocket].
func (c *Conn) Accumulate() (*Response, error) {
	timeout := c.opts.readTimeout()
	start := c.clock.Now()

	var raw []byte
	chunk := make([]byte, ChunkSize)

	finish := func(timedOut bool) *Response {
		return &Response{Raw: raw, TimedOut: timedOut, Elapsed: c.clock.Since(start)}
	}

	for {
		c.con.SetReadDeadLine(c.clock.Now().Add(timeout))

		n, err := c.con.Read(chunk)
		raw = append(raw, chunk[:n]...)

		switch {
		case err == nil && n > 0:
			continue
		case err == nil, errors.Is(err, io.EOF), transport.IsClosed(err):
			// Zero-length read means the peer is done.
			c.logger.Debug("peer closed", slog.Int("bytes", len(raw)))
			return finish(false), nil
		case transport.IsTimeout(err):
			c.logger.Debug("read timed out", slog.Int("bytes", len(raw)), slog.Duration("timeout", timeout))
			return finish(true), nil
		default:
			return finish(false), classify(ErrSocket, errors.Wrap(err, "reading response"))
		}
	}
}

// Close is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.closeErr = c.session.Close()
		}
		if err := c.raw.Close(); err != nil && c.closeErr == nil && !transport.IsClosed(err) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

type Summary struct {
	Local, Remote transport.Addr
	Secure        bool

	// Channel names the stack, e.g. "TLS over TCP".
	Channel string

	// TLS is set for secure connections.
	TLS *tls.State

	// RTT is the kernel's smoothed round-trip estimate. Zero when unknown.
	RTT time.Duration
}

func (c *Conn) Summary() Summary {
	channel := strings.ToUpper(c.remote.Network())
	sum := Summary{
		Local:   c.local,
		Remote:  c.remote,
		Secure:  c.IsSecure(),
		Channel: channel,
	}

	if c.session != nil {
		state := c.session.State()
		sum.TLS = &state
		sum.Channel = "TLS over " + channel
	}

	if tc, ok := c.raw.(*tcp.Conn); ok {
		if info, err := tc.Info(); err == nil {
			sum.RTT = info.RTT
		}
	}

	return sum
}
