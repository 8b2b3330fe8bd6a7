//go:build linux

package tcp

import "time"

func (s *TCPConnTestSuite) TestInfo() {
	info, err := s.C1.(*Conn).Info()
	s.Require().NoError(err)
	s.GreaterOrEqual(info.RTT, time.Duration(0))
}
