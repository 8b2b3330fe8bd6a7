//go:build !linux

package tcp

import (
	"net"

	"github.com/pkg/errors"
)

var errInfoUnsupported = errors.New("socket info is not supported on this platform")

func socketInfo(*net.TCPConn) (Info, error) { return Info{}, errInfoUnsupported }
