package pipe

import (
	"context"
	"socket-client/transport"
	"sync"

	"github.com/benbjohnson/clock"
)

type pipeRequest struct {
	conn     *Conn
	accepted chan struct{}
}

// Transport is an in-memory [transport.ConnDialer]. Listeners are keyed by address name.
type Transport struct {
	listeners map[string]*Listener
	clock     clock.Clock

	mu sync.Mutex
}

func NewTransport(clock clock.Clock) *Transport {
	return &Transport{
		listeners: make(map[string]*Listener),
		clock:     clock,
	}
}

var _ transport.ConnDialer = (*Transport)(nil)

func (pt *Transport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	pt.mu.Lock()
	listener, ok := pt.listeners[addr.String()]
	pt.mu.Unlock()

	if !ok {
		return nil, transport.ErrNetUnreachable
	}

	c1, c2 := NewPair("dialer", addr.String(), pt.clock)

	req := pipeRequest{
		conn:     c2,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-listener.closed:
		return nil, transport.ErrConnRefused
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-listener.closed:
		return nil, transport.ErrConnRefused
	case <-req.accepted:
	}

	return c1, nil
}

func (pt *Transport) Listen(name string) (*Listener, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.listeners[name]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	l := &Listener{
		addr:      Addr{Name: name},
		transport: pt,
		requests:  make(chan pipeRequest),
		closed:    make(chan struct{}),
	}
	pt.listeners[name] = l

	return l, nil
}

type Listener struct {
	addr      Addr
	transport *Transport

	requests chan pipeRequest
	closed   chan struct{}

	once sync.Once
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Addr() Addr { return l.addr }

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case request := <-l.requests:
		request.accepted <- struct{}{}
		return request.conn, nil
	}
}

func (l *Listener) Close() error {
	err := transport.ErrConnListenerClosed
	l.once.Do(func() {
		close(l.closed)

		l.transport.mu.Lock()
		delete(l.transport.listeners, l.addr.Name)
		l.transport.mu.Unlock()

		err = nil
	})
	return err
}
