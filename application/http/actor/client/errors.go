package client

import "github.com/pkg/errors"

// Failure categories of a single exchange. Match them with errors.Is.
var (
	ErrNameResolution = errors.New("name resolution failed")
	ErrConnection     = errors.New("connection failed")
	ErrTLSHandshake   = errors.New("tls handshake failed")
	ErrSocket         = errors.New("socket error")
)

// classified attaches a failure category to its cause, keeping both reachable.
type classified struct {
	kind  error
	cause error
}

func classify(kind, cause error) error {
	return &classified{kind: kind, cause: cause}
}

func (e *classified) Error() string   { return e.kind.Error() + ": " + e.cause.Error() }
func (e *classified) Unwrap() []error { return []error{e.kind, e.cause} }
