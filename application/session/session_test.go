package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/netip"
	"socket-client/application/http"
	"socket-client/application/http/actor/client"
	"socket-client/application/util/domain"
	"socket-client/application/util/target"
	"socket-client/transport"
	"socket-client/transport/pipe"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const testResponse = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n{\"id\":1}"

type ControllerTestSuite struct {
	suite.Suite

	clock     *clock.Mock
	transport *pipe.Transport
	dialer    *trackingDialer
	logger    *slog.Logger

	out    bytes.Buffer
	states []State
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.transport = pipe.NewTransport(s.clock)
	s.dialer = &trackingDialer{ConnDialer: s.transport}
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.out.Reset()
	s.states = nil
}

func (s *ControllerTestSuite) newController(input string, opts Options) *Controller {
	logger := s.logger
	lookuper := domain.NewMapLookuper(map[string][]netip.Addr{
		"example.com": {netip.MustParseAddr("10.0.0.1")},
	})

	cl := client.New(s.dialer, lookuper, logger, s.clock, client.DefaultOptions()).
		WithCombineAddr(func(ip netip.Addr, port uint16) transport.Addr {
			return pipe.Addr{Name: netip.AddrPortFrom(ip, port).String()}
		})

	opts.OnTransition = func(_, to State) {
		s.states = append(s.states, to)

		switch to {
		case Idle, Displaying, AwaitingUserDecision, Terminated:
			// No connection outlives the exchange.
			s.Zero(s.dialer.open(), "open connections entering %s", to)
		}
	}

	return New(cl, NewPrompter(strings.NewReader(input), &s.out), NewDisplay(&s.out, true), logger, s.clock, opts)
}

// serve answers every connection on name with testResponse and reports each request head.
func (s *ControllerTestSuite) serve(name string) <-chan string {
	l, err := s.transport.Listen(name)
	s.Require().NoError(err)
	s.T().Cleanup(func() { l.Close() })

	heads := make(chan string, 16)
	go func() {
		for {
			conn, err := l.Accept(context.Background())
			if err != nil {
				return
			}

			var head []byte
			buf := make([]byte, 512)
			for !bytes.Contains(head, []byte("\r\n\r\n")) {
				n, err := conn.Read(buf)
				if err != nil {
					break
				}
				head = append(head, buf[:n]...)
			}
			heads <- string(head)

			conn.Write([]byte(testResponse))
			conn.Close()
		}
	}()
	return heads
}

func (s *ControllerTestSuite) TestEndOfInput() {
	c := s.newController("", Options{})

	s.NoError(c.Run(context.Background()))
	s.Equal([]State{Idle, Terminated}, s.states)
	s.Equal(Terminated, c.State())
}

func (s *ControllerTestSuite) TestExitRightAway() {
	c := s.newController("EXIT\n", Options{})

	s.NoError(c.Run(context.Background()))
	s.Equal([]State{Idle, Terminated}, s.states)
	s.Contains(s.out.String(), "Exiting.")
}

func (s *ControllerTestSuite) TestExchangeThenExit() {
	heads := s.serve("10.0.0.1:80")

	c := s.newController("y\nhttp://example.com/todos/1\nget\nexit\n", Options{
		Headers: http.Fields{http.NewField("User-Agent", "socket-client-test")},
	})

	s.NoError(c.Run(context.Background()))
	s.Equal([]State{
		Idle, Resolving, Connecting, Sending, Receiving, Displaying, AwaitingUserDecision, Terminated,
	}, s.states)

	s.Equal("GET /todos/1 HTTP/1.1\r\n"+
		"Host: example.com\r\n"+
		"Connection: close\r\n"+
		"User-Agent: socket-client-test\r\n"+
		"\r\n", <-heads)

	out := s.out.String()
	s.Contains(out, "Connection established.")
	s.Contains(out, "Remote: 10.0.0.1:80")
	s.Contains(out, "Type:   PIPE")
	s.Contains(out, "Response received (59 bytes)")
	s.Contains(out, `{"id":1}`)
	s.Contains(out, "1 cycles, 1 succeeded")

	s.Equal(1, s.dialer.count())
}

func (s *ControllerTestSuite) TestPlanHeadersWinOverSessionHeaders() {
	heads := s.serve("10.0.0.1:80")

	c := s.newController("", Options{
		Headers: http.Fields{http.NewField("User-Agent", "default"), http.NewField("Accept", "*/*")},
	})

	err := c.RunOnce(context.Background(), Plan{
		URL:     "http://example.com/",
		Headers: http.Fields{http.NewField("user-agent", "custom")},
	})
	s.Require().NoError(err)

	head := <-heads
	s.Contains(head, "user-agent: custom\r\n")
	s.Contains(head, "Accept: */*\r\n")
	s.NotContains(head, "default")
}

func (s *ControllerTestSuite) TestContinueStartsNewCycle() {
	heads := s.serve("10.0.0.1:80")

	c := s.newController("y\nhttp://example.com/a\n\n\ny\nhttp://example.com/b\n\nexit\n", Options{})

	s.NoError(c.Run(context.Background()))
	s.Contains(<-heads, "GET /a HTTP/1.1")
	s.Contains(<-heads, "GET /b HTTP/1.1")

	s.Equal(2, c.Stats().Attempted())
	s.Equal(2, c.Stats().Succeeded())
	s.Equal(2, s.dialer.count())
}

func (s *ControllerTestSuite) TestFailureStartsOver() {
	c := s.newController("y\nhttp://unknown.test/\n\nexit\n", Options{})

	s.NoError(c.Run(context.Background()))
	s.Equal([]State{Idle, Resolving, Connecting, Idle, Terminated}, s.states)
	s.Contains(s.out.String(), "[x] DNS resolution error")
	s.Contains(s.out.String(), "Starting over.")

	s.Equal(1, c.Stats().Attempted())
	s.Equal(0, c.Stats().Succeeded())
}

func (s *ControllerTestSuite) TestFailureCategories() {
	testcases := []struct {
		desc    string
		input   string
		message string
	}{
		{desc: "invalid target", input: "y\nnot a url\n\n", message: "[x] Invalid URL"},
		{desc: "unsupported scheme", input: "y\nftp://example.com/\n\n", message: "[x] Invalid URL"},
		{desc: "name resolution", input: "y\nhttp://unknown.test/\n\n", message: "[x] DNS resolution error"},
		{desc: "connection", input: "y\nhttp://example.com:81/\n\n", message: "[x] Connection error"},
		{desc: "payload", input: "y\nhttp://example.com/\nPOST\n{invalid}\n", message: "[x] Invalid body"},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			s.out.Reset()
			c := s.newController(tc.input, Options{})

			s.NoError(c.Run(context.Background()))
			s.Contains(s.out.String(), tc.message)
		})
	}
}

func (s *ControllerTestSuite) TestInvalidPayloadBeforeDial() {
	c := s.newController("y\nhttp://example.com/\nPOST\n{invalid}\nexit\n", Options{})

	s.NoError(c.Run(context.Background()))
	s.Equal([]State{Idle, Resolving, Idle, Terminated}, s.states)
	s.Zero(s.dialer.count())
}

func (s *ControllerTestSuite) TestReferenceRequest() {
	heads := s.serve("10.0.0.1:80")

	c := s.newController("n\nexit\n", Options{
		Reference: Plan{URL: "http://example.com/ref", Method: "GET"},
	})

	s.NoError(c.Run(context.Background()))
	s.Contains(<-heads, "GET /ref HTTP/1.1")
	s.Contains(s.out.String(), "Running the reference request on http://example.com/ref")
}

func (s *ControllerTestSuite) TestManyFailuresKeepLooping() {
	const cycles = 500
	c := s.newController(strings.Repeat("y\nhttp://unknown.test/\n\n", cycles), Options{})

	s.NoError(c.Run(context.Background()))
	s.Equal(cycles, c.Stats().Attempted())
	s.Equal(Terminated, c.State())
}

func (s *ControllerTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := s.newController("y\nhttp://example.com/\n\n", Options{})
	s.ErrorIs(c.Run(ctx), context.Canceled)
	s.Equal([]State{Idle, Terminated}, s.states)
}

func (s *ControllerTestSuite) TestRunOnce() {
	heads := s.serve("10.0.0.1:80")

	c := s.newController("", Options{})
	err := c.RunOnce(context.Background(), Plan{URL: "http://example.com/api", Method: "post", Body: []byte(`{"a":1}`)})
	s.Require().NoError(err)

	head := <-heads
	s.Contains(head, "POST /api HTTP/1.1\r\n")
	s.Contains(head, "Content-Length: 7\r\n")
	s.Contains(head, "Content-Type: application/json\r\n")
	s.Equal(Terminated, c.State())
}

func (s *ControllerTestSuite) TestRunOnceFailure() {
	c := s.newController("", Options{})

	err := c.RunOnce(context.Background(), Plan{URL: "example.com"})
	s.True(errors.Is(err, target.ErrInvalidTarget), "got %v", err)
	s.Equal([]State{Idle, Resolving, Terminated}, s.states)
}

func (s *ControllerTestSuite) TestSchemaValidation() {
	validator, err := http.NewPayloadValidator([]byte(`{"type":"object","required":["title"]}`))
	s.Require().NoError(err)

	c := s.newController("", Options{Validator: validator})
	err = c.RunOnce(context.Background(), Plan{URL: "http://example.com/", Method: "PUT", Body: []byte(`{"a":1}`)})
	s.True(errors.Is(err, http.ErrInvalidPayload), "got %v", err)
	s.Zero(s.dialer.count())
}

func (s *ControllerTestSuite) TestInvalidMethodBeforeDial() {
	s.serve("10.0.0.1:80")

	c := s.newController("", Options{})
	err := c.RunOnce(context.Background(), Plan{
		URL:    "http://example.com/",
		Method: "get / HTTP/1.1\r\nX-Injected: 1\r\n\r\nGET",
	})
	s.True(errors.Is(err, http.ErrInvalidMethod), "got %v", err)
	s.Equal([]State{Idle, Resolving, Terminated}, s.states)
	s.Contains(s.out.String(), "[x] Invalid method")
	s.Zero(s.dialer.count())
}

func (s *ControllerTestSuite) TestSuppliedManagedHeadersAreLogged() {
	heads := s.serve("10.0.0.1:80")

	var logs bytes.Buffer
	s.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := s.newController("", Options{})
	err := c.RunOnce(context.Background(), Plan{
		URL:     "http://example.com/",
		Headers: http.Fields{http.NewField("Host", "other.test"), http.NewField("Accept", "*/*")},
	})
	s.Require().NoError(err)

	head := <-heads
	s.Contains(head, "Host: example.com\r\n")
	s.NotContains(head, "other.test")
	s.Contains(head, "Accept: */*\r\n")

	s.Contains(logs.String(), `msg="dropping supplied header" name=Host`)
	s.NotContains(logs.String(), "name=Accept")
}

func (s *ControllerTestSuite) TestPeerGoneBeforeRequest() {
	l, err := s.transport.Listen("10.0.0.1:80")
	s.Require().NoError(err)
	defer l.Close()

	go func() {
		conn, err := l.Accept(context.Background())
		if err != nil {
			return
		}
		conn.Close()
	}()

	c := s.newController("", Options{})
	err = c.RunOnce(context.Background(), Plan{URL: "http://example.com/"})
	s.True(errors.Is(err, client.ErrSocket), "got %v", err)

	s.Equal([]State{Idle, Resolving, Connecting, Sending, Receiving, Displaying, Terminated}, s.states)
	s.Contains(s.out.String(), "Response received (0 bytes)")
	s.Contains(s.out.String(), "[x] Socket error")
}

func (s *ControllerTestSuite) TestReplyAfterFailedSendIsDisplayed() {
	s.dialer = &trackingDialer{ConnDialer: replyOnlyDialer{reply: testResponse}}

	c := s.newController("", Options{})
	err := c.RunOnce(context.Background(), Plan{URL: "http://example.com/", Method: "POST", Body: []byte(`{"a":1}`)})
	s.True(errors.Is(err, client.ErrSocket), "got %v", err)

	s.Contains(s.states, Receiving)
	s.Contains(s.states, Displaying)

	out := s.out.String()
	s.NotContains(out, "Request sent")
	s.Contains(out, "Response received (59 bytes)")
	s.Contains(out, `{"id":1}`)
	s.Equal(0, c.Stats().Succeeded())
}

type trackingDialer struct {
	transport.ConnDialer

	mu    sync.Mutex
	conns []*trackedConn
}

func (d *trackingDialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	conn, err := d.ConnDialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	tc := &trackedConn{Conn: conn}
	d.mu.Lock()
	d.conns = append(d.conns, tc)
	d.mu.Unlock()
	return tc, nil
}

func (d *trackingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *trackingDialer) open() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	open := 0
	for _, c := range d.conns {
		if !c.closed.Load() {
			open++
		}
	}
	return open
}

type trackedConn struct {
	transport.Conn
	closed atomic.Bool
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

// replyOnlyDialer hands out connections that refuse every write but still
// deliver reply, like a server that answers and stops reading.
type replyOnlyDialer struct {
	reply string
}

func (d replyOnlyDialer) Dial(_ context.Context, addr transport.Addr) (transport.Conn, error) {
	return &replyOnlyConn{reply: []byte(d.reply), remote: addr}, nil
}

type replyOnlyConn struct {
	reply  []byte
	remote transport.Addr
}

func (c *replyOnlyConn) Read(p []byte) (int, error) {
	if len(c.reply) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.reply)
	c.reply = c.reply[n:]
	return n, nil
}

func (c *replyOnlyConn) Write([]byte) (int, error) { return 0, transport.ErrConnClosed }
func (c *replyOnlyConn) Close() error              { return nil }

func (c *replyOnlyConn) LocalAddr() transport.Addr  { return pipe.Addr{Name: "client"} }
func (c *replyOnlyConn) RemoteAddr() transport.Addr { return c.remote }

func (c *replyOnlyConn) SetReadDeadLine(time.Time)  {}
func (c *replyOnlyConn) SetWriteDeadLine(time.Time) {}
