package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Framing constants.
const (
	// Terminator ends every outgoing line.
	Terminator = "\r\n"

	// DefaultMaxPartial is the largest unterminated tail a LineBuffer keeps
	// before refusing more data (1 MiB).
	DefaultMaxPartial = 1 << 20
)

// Framing errors.
var (
	// ErrLineTooLong indicates the pending partial line exceeded the limit.
	ErrLineTooLong = errors.New("line too long")
)

// LineBuffer accumulates raw bytes and yields complete lines.
//
// It is not safe for concurrent use; the owning connection serialises access.
type LineBuffer struct {
	buf        []byte
	maxPartial int
}

// NewLineBuffer creates a buffer with the default partial-line limit.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{maxPartial: DefaultMaxPartial}
}

// NewLineBufferWithMax creates a buffer with a custom partial-line limit.
// A limit of zero or less disables the check.
func NewLineBufferWithMax(max int) *LineBuffer {
	return &LineBuffer{maxPartial: max}
}

// Write appends raw transport bytes. It never drops data: if the unterminated
// tail grows past the limit the bytes are still kept and ErrLineTooLong is
// returned so the caller can treat the peer as faulty.
func (b *LineBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if b.maxPartial > 0 && len(b.buf) > b.maxPartial && bytes.IndexByte(b.buf, '\n') < 0 {
		return len(p), fmt.Errorf("%w: %d bytes without terminator", ErrLineTooLong, len(b.buf))
	}
	return len(p), nil
}

// Next removes and returns the oldest complete line, without its terminator.
// It reports false when only a partial line (or nothing) is buffered.
func (b *LineBuffer) Next() (string, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return "", false
	}
	raw := b.buf[:i]
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	line := strings.ToValidUTF8(string(raw), "")

	// Shift the remainder down so the backing array does not grow forever.
	rest := copy(b.buf, b.buf[i+1:])
	b.buf = b.buf[:rest]
	return line, true
}

// Drain extracts every complete line currently buffered.
func (b *LineBuffer) Drain() []string {
	var lines []string
	for {
		line, ok := b.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

// Partial returns a copy of the buffered bytes that are not yet terminated.
func (b *LineBuffer) Partial() []byte {
	return append([]byte(nil), b.buf...)
}

// Len returns the number of buffered bytes, complete lines included.
func (b *LineBuffer) Len() int {
	return len(b.buf)
}

// Reset discards all buffered bytes.
func (b *LineBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Terminate returns line with the terminator appended unless it already ends
// with one.
func Terminate(line string) string {
	if strings.HasSuffix(line, Terminator) {
		return line
	}
	return line + Terminator
}
