// Package assertions provides the deadline-bounded expectation matcher used by
// the test harness.
//
// The matcher scans a connection's lines as they arrive rather than assuming
// the next line is the answer: replies are routinely preceded by unrelated
// numerics and broadcasts from other clients.
package assertions

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultPoll is the polling granularity of Expect.
const DefaultPoll = 20 * time.Millisecond

// LineSource produces lines one at a time. transport.Conn implements it.
type LineSource interface {
	// NextLine waits at most slice for a line not yet returned.
	NextLine(slice time.Duration) (string, bool, error)
	// Label identifies the source in diagnostics.
	Label() string
}

// Match is the outcome of one Expect call.
type Match struct {
	// Pattern is the expression that was searched for.
	Pattern string

	// Label is the source's label.
	Label string

	// Matched reports whether a line matched before the deadline.
	Matched bool

	// Line is the matching line.
	Line string

	// Seen holds every line consumed during this wait, the match included.
	Seen []string

	// Timeout is the requested wait.
	Timeout time.Duration

	// Elapsed is how long the wait took.
	Elapsed time.Duration

	// Closed reports that the wait stopped early because the source can
	// produce no more lines.
	Closed bool

	// Err is the error that ended the wait early, if any.
	Err error
}

// String describes the outcome for failure messages.
func (m *Match) String() string {
	if m.Matched {
		return fmt.Sprintf("[%s] matched /%s/: %s", m.Label, m.Pattern, m.Line)
	}

	var sb strings.Builder
	reason := fmt.Sprintf("within %v", m.Timeout)
	if m.Closed {
		reason = fmt.Sprintf("before connection ended (%v)", m.Err)
	}
	fmt.Fprintf(&sb, "[%s] expected /%s/ %s", m.Label, m.Pattern, reason)
	if len(m.Seen) == 0 {
		sb.WriteString("; no lines received")
		return sb.String()
	}
	fmt.Fprintf(&sb, "; received %d line(s):", len(m.Seen))
	for _, line := range m.Seen {
		sb.WriteString("\n    ")
		sb.WriteString(line)
	}
	return sb.String()
}

// Option configures Expect.
type Option func(*options)

type options struct {
	poll time.Duration
}

// WithPoll sets the polling granularity.
func WithPoll(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// Expect reads lines from src until one matches re (a search, not a full
// match) or timeout elapses. A line already buffered is always examined,
// even for a zero timeout. It returns no later than timeout plus one poll
// interval.
func Expect(src LineSource, re *regexp.Regexp, timeout time.Duration, opts ...Option) *Match {
	o := options{poll: DefaultPoll}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Match{
		Pattern: re.String(),
		Label:   src.Label(),
		Timeout: timeout,
	}

	start := time.Now()
	deadline := start.Add(timeout)
	defer func() { m.Elapsed = time.Since(start) }()

	for {
		slice := min(o.poll, time.Until(deadline))
		if slice < 0 {
			slice = 0
		}

		line, ok, err := src.NextLine(slice)
		if ok {
			m.Seen = append(m.Seen, line)
			if re.MatchString(line) {
				m.Matched = true
				m.Line = line
				return m
			}
		} else if err != nil {
			m.Closed = true
			m.Err = err
			return m
		}
		if !time.Now().Before(deadline) {
			return m
		}
	}
}

// ExpectAbsent waits the whole window and succeeds only if no line matches
// re. Lines consumed are returned in the Match either way.
func ExpectAbsent(src LineSource, re *regexp.Regexp, window time.Duration, opts ...Option) *Match {
	m := Expect(src, re, window, opts...)
	if m.Matched {
		m.Matched = false
		return m
	}
	m.Matched = true
	return m
}

// Drain consumes lines until none arrives for quiet, and returns them.
// It stops early if the source ends.
func Drain(src LineSource, quiet time.Duration) []string {
	var lines []string
	for {
		line, ok, err := src.NextLine(quiet)
		if !ok || err != nil {
			return lines
		}
		lines = append(lines, line)
	}
}

// ErrNoMatch is wrapped by errors produced from failed matches.
var ErrNoMatch = errors.New("no matching line")

// AsError returns nil for a successful match and an error wrapping
// ErrNoMatch otherwise.
func (m *Match) AsError() error {
	if m.Matched {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoMatch, m.String())
}
