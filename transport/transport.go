package transport

type Protocol string

const (
	TCP Protocol = "tcp"
	// Pipe is the in-memory transport used by tests.
	Pipe Protocol = "pipe"
)

// Addr is an endpoint of a transport connection.
// It has the same method set as [net.Addr] so the two convert freely.
type Addr interface {
	Network() string
	String() string
}
