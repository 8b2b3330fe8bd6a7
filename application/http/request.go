package http

import (
	"bytes"
	"socket-client/application/util/rule"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidMethod = errors.New("invalid method")

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"
)

const (
	FieldHost          = "Host"
	FieldConnection    = "Connection"
	FieldContentLength = "Content-Length"
	FieldContentType   = "Content-Type"
	FieldUserAgent     = "User-Agent"

	DefaultContentType = "application/json"
)

// managedFields are written by BuildRequest itself. Copies supplied by the
// caller are dropped so each appears exactly once; see [IsManaged].
var managedFields = []string{FieldHost, FieldConnection, FieldContentLength}

type requestLine struct {
	Method  string
	Target  string
	Version Version
}

type Request struct {
	requestLine
	Headers Fields

	// Body is nil when the request carries no content.
	Body []byte
}

func (r Request) Method() string { return r.requestLine.Method }
func (r Request) Target() string { return r.requestLine.Target }

// NormalizeMethod upper-cases method, defaulting to GET.
func NormalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return MethodGet
	}
	return method
}

// ValidateMethod rejects methods that are not a token once normalized.
func ValidateMethod(method string) error {
	if normalized := NormalizeMethod(method); !rule.IsValidToken(normalized) {
		return errors.Wrapf(ErrInvalidMethod, "%q is not a token", normalized)
	}
	return nil
}

// BuildRequest assembles an HTTP/1.1 request. Callers check method with
// [ValidateMethod] first.
//
// The header section is: Host, Connection: close, the supplied headers in
// order, then Content-Length and a default Content-Type when body is not empty.
// An empty body is treated as no body.
func BuildRequest(method, host, path string, body []byte, headers Fields) Request {
	if path == "" {
		path = "/"
	}

	fields := make(Fields, 0, len(headers)+4)
	fields.Add(FieldHost, host)
	fields.Add(FieldConnection, "close")

	for _, f := range headers {
		if IsManaged(f) {
			continue
		}
		fields = append(fields, Field{Name: bytes.Clone(f.Name), Value: bytes.Clone(f.Value)})
	}

	if len(body) == 0 {
		body = nil
	} else {
		fields.Add(FieldContentLength, strconv.Itoa(len(body)))
		if !headers.Has(FieldContentType) {
			fields.Add(FieldContentType, DefaultContentType)
		}
		body = bytes.Clone(body)
	}

	return Request{
		requestLine: requestLine{
			Method:  NormalizeMethod(method),
			Target:  path,
			Version: Version11,
		},
		Headers: fields,
		Body:    body,
	}
}

// IsManaged reports whether f is one of the fields BuildRequest writes itself.
func IsManaged(f Field) bool {
	for _, name := range managedFields {
		if f.Is(name) {
			return true
		}
	}
	return false
}

// Bytes returns the exact wire form of r.
func (r Request) Bytes() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = NewRequestEncoder(&buf, DefaultEncodeOptions).Encode(r)
	return buf.Bytes()
}

// Serialize is BuildRequest followed by Bytes.
func Serialize(method, host, path string, body []byte, headers Fields) []byte {
	return BuildRequest(method, host, path, body, headers).Bytes()
}
