package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/netip"
	"socket-client/application/http"
	"socket-client/application/util/domain"
	"socket-client/application/util/target"
	"socket-client/transport"
	"socket-client/transport/pipe"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite

	clock     *clock.Mock
	transport *pipe.Transport
	lookuper  domain.Lookuper
	client    *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.transport = pipe.NewTransport(s.clock)
	s.lookuper = domain.NewMapLookuper(map[string][]netip.Addr{
		"example.com": {netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")},
	})

	s.client = New(
		s.transport, s.lookuper,
		slog.New(slog.NewTextHandler(io.Discard, nil)), s.clock,
		DefaultOptions(),
	).WithCombineAddr(pipeAddr)
}

func pipeAddr(ip netip.Addr, port uint16) transport.Addr {
	return pipe.Addr{Name: netip.AddrPortFrom(ip, port).String()}
}

func (s *ClientTestSuite) listen(name string) *pipe.Listener {
	l, err := s.transport.Listen(name)
	s.Require().NoError(err)
	s.T().Cleanup(func() { l.Close() })
	return l
}

// serve accepts one connection, reads a whole request head and passes the conn to handle.
func (s *ClientTestSuite) serve(l *pipe.Listener, handle func(conn transport.Conn, head []byte)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		conn, err := l.Accept(context.Background())
		if err != nil {
			return
		}
		defer conn.Close()

		var head []byte
		buf := make([]byte, 512)
		for !bytes.Contains(head, []byte("\r\n\r\n")) {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			head = append(head, buf[:n]...)
		}

		handle(conn, head)
	}()
	return done
}

func (s *ClientTestSuite) connect(rawURL string) *Conn {
	t, err := target.Parse(rawURL)
	s.Require().NoError(err)

	conn, err := s.client.Connect(context.Background(), t)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

func (s *ClientTestSuite) send(conn *Conn) {
	t := conn.Target()
	_, err := conn.Send(http.BuildRequest("GET", t.HostHeader(), t.RequestTarget(), nil, nil))
	s.Require().NoError(err)
}

func (s *ClientTestSuite) TestExchange() {
	response := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"

	var received []byte
	done := s.serve(s.listen("10.0.0.1:80"), func(conn transport.Conn, head []byte) {
		received = head
		_, err := conn.Write([]byte(response))
		s.NoError(err)
	})

	conn := s.connect("http://example.com/todos/1?x=1")
	s.send(conn)

	res, err := conn.Accumulate()
	s.Require().NoError(err)
	<-done

	s.Equal(response, string(res.Raw))
	s.Equal(len(response), res.Len())
	s.False(res.TimedOut)
	s.Equal("GET /todos/1?x=1 HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n", string(received))

	sum := conn.Summary()
	s.False(sum.Secure)
	s.Equal("PIPE", sum.Channel)
	s.Equal("10.0.0.1:80", sum.Remote.String())
	s.NotNil(sum.Local)
	s.Nil(sum.TLS)
}

func (s *ClientTestSuite) TestTriesEveryAddress() {
	done := s.serve(s.listen("10.0.0.2:80"), func(transport.Conn, []byte) {})

	conn := s.connect("http://example.com/")
	s.Equal("10.0.0.2:80", conn.RemoteAddr().String())

	s.send(conn)
	_, err := conn.Accumulate()
	s.NoError(err)
	<-done
}

func (s *ClientTestSuite) TestIPLiteralBypassesLookup() {
	done := s.serve(s.listen("10.9.9.9:8080"), func(transport.Conn, []byte) {})

	conn := s.connect("http://10.9.9.9:8080/")
	s.Equal("10.9.9.9:8080", conn.RemoteAddr().String())

	s.send(conn)
	_, err := conn.Accumulate()
	s.NoError(err)
	<-done
}

func (s *ClientTestSuite) TestConnectFailures() {
	closed := s.listen("10.0.0.7:80")
	s.Require().NoError(closed.Close())

	testcases := []struct {
		desc   string
		rawURL string
		kind   error
		cause  error
	}{
		{desc: "unknown host", rawURL: "http://unknown.com/", kind: ErrNameResolution, cause: domain.ErrDomainNotFound},
		{desc: "no listener", rawURL: "http://example.com/", kind: ErrConnection, cause: transport.ErrNetUnreachable},
		{desc: "closed listener", rawURL: "http://10.0.0.7/", kind: ErrConnection, cause: transport.ErrNetUnreachable},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			t, err := target.Parse(tc.rawURL)
			s.Require().NoError(err)

			conn, err := s.client.Connect(context.Background(), t)
			s.Nil(conn)
			s.True(errors.Is(err, tc.kind), "got %v", err)
			s.True(errors.Is(err, tc.cause), "got %v", err)
		})
	}
}

func (s *ClientTestSuite) TestTimeoutKeepsPartialData() {
	written := make(chan struct{})
	release := make(chan struct{})
	done := s.serve(s.listen("10.0.0.1:80"), func(conn transport.Conn, _ []byte) {
		_, err := conn.Write([]byte("partial"))
		s.NoError(err)
		close(written)
		<-release
	})
	defer func() { close(release); <-done }()

	conn := s.connect("http://example.com/")
	s.send(conn)

	result := make(chan *Response, 1)
	go func() {
		res, err := conn.Accumulate()
		s.NoError(err)
		result <- res
	}()

	// The chunk is consumed once the write returns.
	<-written

	// Advance until the silence deadline set after the first chunk passes.
	var res *Response
	for res == nil {
		select {
		case res = <-result:
		case <-time.After(time.Millisecond):
			s.clock.Add(time.Second)
		}
	}

	s.True(res.TimedOut)
	s.Equal("partial", string(res.Raw))
	s.GreaterOrEqual(res.Elapsed, DefaultReadTimeout)
}

func (s *ClientTestSuite) TestPeerCloseBeforeTimeout() {
	written := make(chan struct{})
	proceed := make(chan struct{})
	done := s.serve(s.listen("10.0.0.1:80"), func(conn transport.Conn, _ []byte) {
		_, err := conn.Write([]byte("abc"))
		s.NoError(err)
		close(written)
		<-proceed
	})

	conn := s.connect("http://example.com/")
	s.send(conn)

	result := make(chan *Response, 1)
	go func() {
		res, err := conn.Accumulate()
		s.NoError(err)
		result <- res
	}()

	<-written
	s.clock.Add(100 * time.Millisecond)
	close(proceed)
	<-done

	res := <-result
	s.False(res.TimedOut)
	s.Equal("abc", string(res.Raw))
}

func (s *ClientTestSuite) TestLargeResponseInChunks() {
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	done := s.serve(s.listen("10.0.0.1:80"), func(conn transport.Conn, _ []byte) {
		_, err := conn.Write(payload)
		s.NoError(err)
	})

	conn := s.connect("http://example.com/")
	s.send(conn)

	res, err := conn.Accumulate()
	s.Require().NoError(err)
	<-done

	s.Equal(payload, res.Raw)
}

func (s *ClientTestSuite) TestSendAfterPeerClosed() {
	done := s.serve(s.listen("10.0.0.1:80"), func(transport.Conn, []byte) {})

	conn := s.connect("http://example.com/")
	s.send(conn)
	<-done

	_, err := conn.Send(http.BuildRequest("GET", "example.com", "/", nil, nil))
	s.True(errors.Is(err, ErrSocket), "got %v", err)
}

func (s *ClientTestSuite) TestCloseIsIdempotent() {
	done := s.serve(s.listen("10.0.0.1:80"), func(transport.Conn, []byte) {})

	conn := s.connect("http://example.com/")
	s.NoError(conn.Close())
	s.NoError(conn.Close())

	// The server is stuck reading a request that never comes; closing unblocks it.
	<-done
}

type ResponseTestSuite struct {
	suite.Suite
}

func TestResponseTestSuite(t *testing.T) {
	suite.Run(t, new(ResponseTestSuite))
}

func (s *ResponseTestSuite) TestText() {
	testcases := []struct {
		desc     string
		raw      []byte
		expected string
	}{
		{desc: "ascii", raw: []byte("HTTP/1.1 200 OK"), expected: "HTTP/1.1 200 OK"},
		{desc: "multibyte", raw: []byte("café"), expected: "café"},
		{desc: "invalid byte", raw: []byte{'a', 0xff, 'b'}, expected: "a�b"},
		{desc: "empty", raw: nil, expected: ""},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			res := &Response{Raw: tc.raw}
			s.Equal(tc.expected, res.Text())
			s.Equal(len(tc.raw), res.Len())
		})
	}
}
