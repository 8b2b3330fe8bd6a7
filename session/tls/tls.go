// Package tls secures a [transport.Conn] with Transport Layer Security.
//
// The record layer and handshake come from crypto/tls; this package adapts
// them to the transport interfaces and error sentinels used across the module.
//
// Reference:
// - https://datatracker.ietf.org/doc/html/rfc8446
// - https://datatracker.ietf.org/doc/html/rfc6066
package tls

import (
	"context"
	stdtls "crypto/tls"
	"crypto/x509"
	"socket-client/transport"

	"github.com/pkg/errors"
)

type ClientOptions struct {
	// ServerName is sent as SNI and used to verify the peer certificate.
	ServerName string

	// RootCAs replaces the platform trust store when non-nil.
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool

	// NextProtos is the ALPN list offered to the server. Empty means no ALPN.
	NextProtos []string
}

func (o ClientOptions) config() *stdtls.Config {
	return &stdtls.Config{
		ServerName:         o.ServerName,
		RootCAs:            o.RootCAs,
		InsecureSkipVerify: o.InsecureSkipVerify,
		NextProtos:         o.NextProtos,
		MinVersion:         stdtls.VersionTLS12,
	}
}

// NewClient runs the client handshake over conn. On failure conn is left open;
// the caller owns it until a *Conn is returned.
func NewClient(ctx context.Context, conn transport.Conn, opts ClientOptions) (*Conn, error) {
	if opts.ServerName == "" && !opts.InsecureSkipVerify {
		return nil, errors.New("server name is required for certificate verification")
	}

	tc := stdtls.Client(&netConn{conn}, opts.config())
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(err, "handshake failed")
	}

	return &Conn{tc: tc, underlying: conn}, nil
}

type ServerOptions struct {
	Certificates []stdtls.Certificate
}

// NewServer runs the server handshake over conn.
func NewServer(ctx context.Context, conn transport.Conn, opts ServerOptions) (*Conn, error) {
	tc := stdtls.Server(&netConn{conn}, &stdtls.Config{
		Certificates: opts.Certificates,
		MinVersion:   stdtls.VersionTLS12,
	})
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(err, "handshake failed")
	}

	return &Conn{tc: tc, underlying: conn}, nil
}
