// Package transport provides the client side of the line-oriented text
// protocol used by the server under test.
//
// A Conn owns one TCP (or TLS) socket. A background reader drains the socket
// into a wire.LineBuffer and queues every complete line; NextLine hands the
// queued lines out one at a time, in arrival order, exactly once. Bytes of an
// unterminated line stay in the buffer until their terminator arrives.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Text lines (prefix cmd args) │
//	├────────────────────────────────┤
//	│   CRLF framing (LF accepted)   │
//	├────────────────────────────────┤
//	│      TLS (optional)            │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Robustness helpers
//
// SendRaw writes bytes without a terminator so a test can split one logical
// line over several writes. Abort resets the socket without a graceful
// shutdown. Pause stops the background reader so the server sees a consumer
// that never drains its socket.
package transport
