//go:build linux

package tcp

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func socketInfo(c *net.TCPConn) (Info, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return Info{}, errors.Wrap(err, "getting raw conn")
	}

	var (
		ti      *unix.TCPInfo
		sockErr error
	)
	if err := raw.Control(func(fd uintptr) {
		ti, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	}); err != nil {
		return Info{}, errors.Wrap(err, "controlling raw conn")
	}
	if sockErr != nil {
		return Info{}, errors.Wrap(sockErr, "getsockopt TCP_INFO")
	}

	// tcpi_rtt is reported in microseconds.
	return Info{RTT: time.Duration(ti.Rtt) * time.Microsecond}, nil
}
