package client

import (
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Response holds the bytes received for one request, uninterpreted.
type Response struct {
	Raw []byte

	// TimedOut is set when reading stopped because the peer went silent.
	TimedOut bool

	Elapsed time.Duration
}

func (r *Response) Len() int { return len(r.Raw) }

// Text decodes Raw as UTF-8. Invalid sequences become U+FFFD.
func (r *Response) Text() string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(r.Raw)
	if err != nil {
		// The UTF-8 decoder replaces rather than fails.
		return string(r.Raw)
	}
	return string(decoded)
}
