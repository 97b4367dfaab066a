package mock

import "errors"

// Mock package errors.
var (
	// ErrServerClosed is returned by Serve after Close.
	ErrServerClosed = errors.New("mock server closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("mock server already started")
)
