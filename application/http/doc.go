// Package http builds HTTP/1.1 request messages byte by byte.
//
// Only the request side of the message syntax is implemented: responses are
// surfaced to callers as raw bytes.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
