package transport

import (
	"errors"
	"fmt"
)

// Connection errors.
var (
	// ErrClosed is returned for operations on a Conn closed locally.
	ErrClosed = errors.New("connection closed")

	// ErrPeerClosed is returned once the server has closed its side and
	// every buffered line has been consumed.
	ErrPeerClosed = errors.New("connection closed by peer")
)

// ConnError is a transport-level fault: connect, write or read.
type ConnError struct {
	Op    string // "dial", "handshake", "write", "read"
	Label string
	Addr  string
	Err   error
}

func (e *ConnError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Addr, e.Label, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// IsConnError reports whether err is or wraps a transport fault, including
// a peer or local close.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce) || errors.Is(err, ErrClosed) || errors.Is(err, ErrPeerClosed)
}
