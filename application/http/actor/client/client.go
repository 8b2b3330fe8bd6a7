package client

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/netip"
	"socket-client/application/util/domain"
	"socket-client/application/util/target"
	"socket-client/session/tls"
	"socket-client/transport"
	"socket-client/transport/tcp"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Client establishes one connection per exchange. Connections are never reused.
type Client struct {
	opts Options

	logger *slog.Logger
	clock  clock.Clock

	lookuper   domain.Lookuper
	connDialer transport.ConnDialer

	combineAddr CombineAddrFunc
}

type CombineAddrFunc func(ip netip.Addr, port uint16) transport.Addr

func New(
	d transport.ConnDialer,
	lookuper domain.Lookuper,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	client := &Client{
		connDialer: d,
		lookuper:   lookuper,
		logger:     logger,
		opts:       opts,
		clock:      clock,
	}

	client.combineAddr = func(ip netip.Addr, port uint16) transport.Addr {
		return tcp.NewAddr(ip, port)
	}

	return client
}

// WithCombineAddr replaces how a resolved address and port become a dial address.
func (c *Client) WithCombineAddr(f CombineAddrFunc) *Client {
	c.combineAddr = f
	return c
}

// Connect resolves t, dials it and, for https, runs the TLS handshake.
//
// Errors are categorized as [ErrNameResolution], [ErrConnection],
// [ErrTLSHandshake] or [ErrSocket]. Nothing stays open on failure.
func (c *Client) Connect(ctx context.Context, t target.Target) (*Conn, error) {
	ips, err := c.resolve(ctx, t)
	if err != nil {
		return nil, classify(ErrNameResolution, err)
	}

	raw, err := c.dial(ctx, ips, t.Port)
	if err != nil {
		return nil, classify(ErrConnection, err)
	}

	conn := &Conn{
		con:    raw,
		raw:    raw,
		target: t,
		opts:   c.opts,
		logger: c.logger,
		clock:  c.clock,
	}

	if t.IsSecure() {
		session, err := c.handshake(ctx, t, raw)
		if err != nil {
			_ = raw.Close()
			return nil, classify(ErrTLSHandshake, err)
		}
		conn.con = session
		conn.session = session
	}

	if err := conn.inspect(); err != nil {
		_ = conn.Close()
		return nil, classify(ErrSocket, err)
	}

	c.logger.Debug("connection established",
		slog.String("local", conn.local.String()),
		slog.String("remote", conn.remote.String()),
		slog.Bool("secure", conn.IsSecure()),
	)

	return conn, nil
}

func (c *Client) resolve(ctx context.Context, t target.Target) ([]netip.Addr, error) {
	if ip, ok := t.IP(); ok {
		return []netip.Addr{ip}, nil
	}

	// Host is a domain name. Resolve it to the ip addresses.
	ctx, cancel := c.clock.WithTimeout(ctx, c.opts.connectTimeout())
	defer cancel()

	ips, err := c.lookuper.LookupIP(ctx, t.Host)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup for host(%s) failed", t.Host)
	}
	if len(ips) == 0 {
		return nil, errors.Wrapf(domain.ErrDomainNotFound, "lookup for host(%s) returned nothing", t.Host)
	}

	return ips, nil
}

// dial tries every address in order and returns the first connection made.
func (c *Client) dial(ctx context.Context, ips []netip.Addr, port uint16) (transport.Conn, error) {
	var errs []error
	for _, ip := range ips {
		addr := c.combineAddr(ip, port)

		conn, err := c.dialOne(ctx, addr)
		if err == nil {
			return conn, nil
		}

		c.logger.Debug("dial failed", slog.String("addr", addr.String()), slog.Any("error", err))
		errs = append(errs, errors.Wrapf(err, "dialing %s", addr))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, stderrors.Join(errs...)
}

func (c *Client) dialOne(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	ctx, cancel := c.clock.WithTimeout(ctx, c.opts.connectTimeout())
	defer cancel()

	return c.connDialer.Dial(ctx, addr)
}

func (c *Client) handshake(ctx context.Context, t target.Target, raw transport.Conn) (*tls.Conn, error) {
	ctx, cancel := c.clock.WithTimeout(ctx, c.opts.connectTimeout())
	defer cancel()

	return tls.NewClient(ctx, raw, tls.ClientOptions{
		ServerName:         t.Host,
		RootCAs:            c.opts.TLS.RootCAs,
		InsecureSkipVerify: c.opts.TLS.InsecureSkipVerify,
	})
}
