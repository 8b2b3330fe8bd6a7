package client

import (
	"crypto/x509"
	"socket-client/application/http"
	"time"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 5 * time.Second

	// ChunkSize is the size of a single read while accumulating a response.
	ChunkSize = 4096
)

type Options struct {
	Send    SendOptions
	TLS     TLSOptions
	Timeout TimeoutOptions
}

type SendOptions struct {
	Encode http.EncodeOptions
}

type TLSOptions struct {
	// RootCAs replaces the platform trust store when non-nil.
	RootCAs *x509.CertPool

	InsecureSkipVerify bool
}

type TimeoutOptions struct {
	// Connect bounds each dial attempt and the TLS handshake.
	Connect time.Duration

	// Read is the longest silence tolerated while accumulating a response.
	Read time.Duration
}

func DefaultOptions() Options {
	return Options{
		Send: SendOptions{Encode: http.DefaultEncodeOptions},
		Timeout: TimeoutOptions{
			Connect: DefaultConnectTimeout,
			Read:    DefaultReadTimeout,
		},
	}
}

func (o Options) connectTimeout() time.Duration {
	if o.Timeout.Connect <= 0 {
		return DefaultConnectTimeout
	}
	return o.Timeout.Connect
}

func (o Options) readTimeout() time.Duration {
	if o.Timeout.Read <= 0 {
		return DefaultReadTimeout
	}
	return o.Timeout.Read
}
