// Package target resolves a URL into the endpoint and request target of a single HTTP exchange.
package target

import (
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

var ErrInvalidTarget = errors.New("invalid target")

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	DefaultHTTPPort  uint16 = 80
	DefaultHTTPSPort uint16 = 443
)

// Underscores are common in internal host names, so STD3 rules are relaxed.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
)

type Target struct {
	Scheme string
	// Host is in ASCII form. IPv6 literals carry no brackets.
	Host string
	Port uint16
	Path string
	// Query is the raw query without the leading '?'.
	Query string
}

// Parse resolves rawURL into a [Target].
// Missing path becomes "/" and a missing port is derived from the scheme.
func Parse(rawURL string) (Target, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, errors.Wrap(ErrInvalidTarget, err.Error())
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "unsupported scheme %q in %q", u.Scheme, rawURL)
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return Target{}, err
	}

	port := DefaultHTTPPort
	if scheme == SchemeHTTPS {
		port = DefaultHTTPSPort
	}
	if rawPort := u.Port(); rawPort != "" {
		p, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || p == 0 {
			return Target{}, errors.Wrapf(ErrInvalidTarget, "port %q out of range", rawPort)
		}
		port = uint16(p)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
		Query:  u.RawQuery,
	}, nil
}

func normalizeHost(host string) (string, error) {
	if host == "" {
		return "", errors.Wrap(ErrInvalidTarget, "no hostname")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String(), nil
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidTarget, "host %q: %s", host, err.Error())
	}
	if ascii == "" {
		return "", errors.Wrap(ErrInvalidTarget, "no hostname")
	}
	return ascii, nil
}

func (t Target) IsSecure() bool { return t.Scheme == SchemeHTTPS }

// IP returns the host as an address when it is an IP literal.
func (t Target) IP() (netip.Addr, bool) {
	addr, err := netip.ParseAddr(t.Host)
	return addr, err == nil
}

// Authority is host and port as used for dialing and display.
func (t Target) Authority() string {
	return net.JoinHostPort(t.Host, strconv.FormatUint(uint64(t.Port), 10))
}

// HostHeader is the value of the Host header field. The port is left out.
func (t Target) HostHeader() string {
	if addr, ok := t.IP(); ok && addr.Is6() {
		return "[" + t.Host + "]"
	}
	return t.Host
}

// RequestTarget is the origin-form used on the request line.
func (t Target) RequestTarget() string {
	if t.Query == "" {
		return t.Path
	}
	return t.Path + "?" + t.Query
}

func (t Target) String() string {
	return t.Scheme + "://" + t.Authority() + t.RequestTarget()
}
