package session

import (
	"errors"
	"fmt"
)

// ErrClosed is returned once the session has been torn down by its owner.
var ErrClosed = errors.New("session closed")

// ConnectionErrorOp identifies the channel operation that failed.
type ConnectionErrorOp int

const (
	// OpDial indicates the channel failed to open.
	OpDial ConnectionErrorOp = iota
	// OpRead indicates the channel dropped while reading.
	OpRead
	// OpWrite indicates a frame could not be written.
	OpWrite
	// OpClosed indicates the session was already closed.
	OpClosed
)

func (o ConnectionErrorOp) String() string {
	switch o {
	case OpDial:
		return "dial"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// ConnectionError reports a channel-level failure. Once a session has
// returned a dial or read ConnectionError it is Closed; a fresh session
// must be constructed to reconnect.
type ConnectionError struct {
	Op       ConnectionErrorOp
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError returns true if err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
