package chat

import "time"

// Close codes sent when the gateway terminates a connection itself.
// 4xxx is the application-reserved WebSocket range.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseProtocolError = 4400
	CloseUnauthorized  = 4401
)

// Conn is one live bidirectional transport channel. A Conn is owned by
// exactly one session for its lifetime and has no identity beyond object
// identity. Implementations must make Push safe for concurrent callers
// (fan-out pushes from many routing goroutines target the same Conn).
type Conn interface {
	// Receive blocks until the next inbound payload arrives or the transport
	// fails. Closing the transport from any goroutine unblocks it.
	Receive() ([]byte, error)

	// Push serializes and writes one frame. A non-nil error means the
	// transport is dead; the caller evicts the connection.
	Push(f Frame) error

	// Close terminates the transport with the given close code. Safe to call
	// more than once.
	Close(code int) error
}

// readDeadliner is optionally implemented by transports that can bound a
// blocking Receive. The session uses it to cap the auth handshake.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}
