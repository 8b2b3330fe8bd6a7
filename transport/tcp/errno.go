package tcp

import (
	"socket-client/transport"
	"syscall"

	"github.com/pkg/errors"
)

// classifyConnect keeps the original error readable while letting callers match
// refused and unreachable destinations with errors.Is.
func classifyConnect(err error) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &connectError{kind: transport.ErrConnRefused, cause: err}
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return &connectError{kind: transport.ErrNetUnreachable, cause: err}
	}
	return err
}

type connectError struct {
	kind, cause error
}

func (e *connectError) Error() string   { return e.cause.Error() }
func (e *connectError) Unwrap() []error { return []error{e.kind, e.cause} }
