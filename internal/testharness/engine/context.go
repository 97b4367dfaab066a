package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/ircconform/irctest-go/internal/testharness/assertions"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// Context is the per-scenario test context. It owns every connection the
// scenario opens and closes them all when the scenario ends.
//
// The Require*, Failf and Faultf helpers end the scenario immediately, the
// way testing.T.FailNow does, so they must be called from the goroutine
// running the scenario.
type Context struct {
	ctx      context.Context
	name     string
	settings Settings
	dialer   *transport.Dialer
	logger   *slog.Logger

	mu      sync.Mutex
	conns   map[string]*transport.Conn
	order   []string
	vars    map[string]any
	closed  bool
	outcome Outcome
	detail  string
	err     error
}

// NewContext creates a Context for the named scenario.
func NewContext(ctx context.Context, name string, settings Settings, logger *slog.Logger) *Context {
	if settings.ExpectTimeout <= 0 {
		settings.ExpectTimeout = DefaultExpectTimeout
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Context{
		ctx:      ctx,
		name:     name,
		settings: settings,
		logger:   logger.With("scenario", name),
		dialer: &transport.Dialer{
			Address:        settings.Address,
			TLSConfig:      settings.TLSConfig,
			ConnectTimeout: settings.ConnectTimeout,
			Conn: transport.Config{
				WriteTimeout: settings.WriteTimeout,
				Logger:       settings.ProtocolLogger,
				Scenario:     name,
				Echo:         settings.Echo,
			},
		},
		conns: make(map[string]*transport.Conn),
		vars:  make(map[string]any),
	}
}

// Name returns the scenario name.
func (tc *Context) Name() string { return tc.name }

// Context returns the scenario's context.Context. It is cancelled when the
// scenario times out.
func (tc *Context) Context() context.Context { return tc.ctx }

// Settings returns the shared settings.
func (tc *Context) Settings() Settings { return tc.settings }

// Password returns the configured credential.
func (tc *Context) Password() string { return tc.settings.Password }

// Strict reports whether exact wording checks are enabled.
func (tc *Context) Strict() bool { return tc.settings.Strict }

// Logger returns the scenario's logger.
func (tc *Context) Logger() *slog.Logger { return tc.logger }

// Set stores a scenario variable.
func (tc *Context) Set(key string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.vars[key] = value
}

// Get returns a scenario variable.
func (tc *Context) Get(key string) (any, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.vars[key]
	return v, ok
}

// Dial opens a connection labelled label. Labels must be unique within the
// Context.
func (tc *Context) Dial(label string) (*transport.Conn, error) {
	return tc.DialContext(tc.ctx, label)
}

// DialContext is like Dial but dials under ctx, which should derive from
// Context(). The label is released again when the dial fails.
func (tc *Context) DialContext(ctx context.Context, label string) (*transport.Conn, error) {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return nil, fmt.Errorf("open %s: %w", label, transport.ErrClosed)
	}
	if _, exists := tc.conns[label]; exists {
		tc.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
	}
	// Reserve the label while dialing.
	tc.conns[label] = nil
	tc.mu.Unlock()

	conn, err := tc.dialer.Dial(ctx, label)

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if err != nil {
		delete(tc.conns, label)
		return nil, err
	}
	if tc.closed {
		conn.Close()
		delete(tc.conns, label)
		return nil, fmt.Errorf("open %s: %w", label, transport.ErrClosed)
	}
	tc.conns[label] = conn
	tc.order = append(tc.order, label)
	tc.logger.Debug("connection opened", "label", label, "conn_id", conn.ID())
	return conn, nil
}

// Open is like Dial but ends the scenario with a fault on error.
func (tc *Context) Open(label string) *transport.Conn {
	conn, err := tc.Dial(label)
	if err != nil {
		tc.Fault(err)
	}
	return conn
}

// Conn returns the connection labelled label, or nil.
func (tc *Context) Conn(label string) *transport.Conn {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.conns[label]
}

// Labels returns connection labels in creation order.
func (tc *Context) Labels() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]string(nil), tc.order...)
}

// CloseAll closes every connection. Further Dial calls fail. It is safe to
// call more than once and from any goroutine.
func (tc *Context) CloseAll() {
	tc.mu.Lock()
	tc.closed = true
	conns := make([]*transport.Conn, 0, len(tc.order))
	for _, label := range tc.order {
		if c := tc.conns[label]; c != nil {
			conns = append(conns, c)
		}
	}
	tc.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			tc.logger.Debug("close failed", "label", c.Label(), "error", err)
		}
	}
}

// Transcripts returns every received line per connection label.
func (tc *Context) Transcripts() map[string][]string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make(map[string][]string, len(tc.order))
	for _, label := range tc.order {
		if c := tc.conns[label]; c != nil {
			out[label] = c.Lines()
		}
	}
	return out
}

// record stores the first non-pass outcome. Later calls are ignored.
func (tc *Context) record(outcome Outcome, detail string, err error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.outcome != OutcomePass {
		return
	}
	tc.outcome = outcome
	tc.detail = detail
	tc.err = err
}

func (tc *Context) result() (Outcome, string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.outcome, tc.detail, tc.err
}

// Failf records an assertion failure and ends the scenario.
func (tc *Context) Failf(format string, args ...any) {
	err := Failf(format, args...)
	tc.record(OutcomeAssertion, err.Error(), err)
	runtime.Goexit()
}

// Skipf marks the scenario skipped and ends it.
func (tc *Context) Skipf(format string, args ...any) {
	tc.record(OutcomeSkipped, fmt.Sprintf(format, args...), nil)
	runtime.Goexit()
}

// Fault records an unexpected fault and ends the scenario.
func (tc *Context) Fault(err error) {
	tc.record(OutcomeFault, describeFault(err), err)
	runtime.Goexit()
}

// Faultf records a formatted unexpected fault and ends the scenario.
func (tc *Context) Faultf(format string, args ...any) {
	tc.Fault(fmt.Errorf(format, args...))
}

// Check ends the scenario if err is non-nil. An AssertionError is recorded
// as an assertion failure, anything else as a fault.
func (tc *Context) Check(err error) {
	if err == nil {
		return
	}
	if IsAssertion(err) {
		tc.record(OutcomeAssertion, err.Error(), err)
		runtime.Goexit()
	}
	tc.Fault(err)
}

// Logf writes a debug log line for the scenario.
func (tc *Context) Logf(format string, args ...any) {
	tc.logger.Debug(fmt.Sprintf(format, args...))
}

// Send sends a line, ending the scenario on a transport fault.
func (tc *Context) Send(c *transport.Conn, line string) {
	tc.Check(c.Send(line))
}

// Sendf formats and sends a line.
func (tc *Context) Sendf(c *transport.Conn, format string, args ...any) {
	tc.Send(c, fmt.Sprintf(format, args...))
}

// SendCommand formats and sends a command.
func (tc *Context) SendCommand(c *transport.Conn, cmd string, params ...string) {
	tc.Check(c.SendCommand(cmd, params...))
}

// SendRaw writes bytes with no terminator.
func (tc *Context) SendRaw(c *transport.Conn, data []byte) {
	tc.Check(c.SendRaw(data))
}

// Sleep pauses the script. It ends early, with a fault, if the scenario is
// cancelled.
func (tc *Context) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-tc.ctx.Done():
		tc.Fault(tc.cancelCause())
	}
}

func (tc *Context) cancelCause() error {
	if cause := context.Cause(tc.ctx); cause != nil {
		return cause
	}
	return tc.ctx.Err()
}

func (tc *Context) timeout(t []time.Duration) time.Duration {
	if len(t) > 0 && t[0] > 0 {
		return t[0]
	}
	return tc.settings.ExpectTimeout
}

// Expect waits for a line matching re. It never ends the scenario; the
// caller decides what a miss means. An optional timeout overrides the
// default.
func (tc *Context) Expect(c *transport.Conn, re *regexp.Regexp, timeout ...time.Duration) *assertions.Match {
	return assertions.Expect(c, re, tc.timeout(timeout), assertions.WithPoll(tc.settings.PollInterval))
}

// ExpectPattern compiles pattern and calls Expect. An invalid pattern is a
// fault.
func (tc *Context) ExpectPattern(c *transport.Conn, pattern string, timeout ...time.Duration) *assertions.Match {
	re, err := regexp.Compile(pattern)
	if err != nil {
		tc.Fault(fmt.Errorf("invalid pattern %q: %w", pattern, err))
	}
	return tc.Expect(c, re, timeout...)
}

// Require waits for a line matching re and returns it. A miss is an
// assertion failure.
func (tc *Context) Require(c *transport.Conn, re *regexp.Regexp, timeout ...time.Duration) string {
	m := tc.Expect(c, re, timeout...)
	if !m.Matched {
		tc.failMatch(c, m)
	}
	return m.Line
}

// RequirePattern compiles pattern and calls Require.
func (tc *Context) RequirePattern(c *transport.Conn, pattern string, timeout ...time.Duration) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		tc.Fault(fmt.Errorf("invalid pattern %q: %w", pattern, err))
	}
	return tc.Require(c, re, timeout...)
}

// RequireNumeric waits for the numeric reply described by spec. The exact
// wording is enforced only in strict mode.
func (tc *Context) RequireNumeric(c *transport.Conn, spec assertions.NumericSpec, timeout ...time.Duration) string {
	return tc.Require(c, spec.Pattern(tc.settings.Strict), timeout...)
}

// RequireCode waits for a numeric reply with an optional anchor.
func (tc *Context) RequireCode(c *transport.Conn, code, contains string, timeout ...time.Duration) string {
	return tc.Require(c, assertions.NumericPattern(code, contains), timeout...)
}

// RequireCommand waits for a line carrying cmd.
func (tc *Context) RequireCommand(c *transport.Conn, cmd string, timeout ...time.Duration) string {
	return tc.Require(c, assertions.CommandPattern(cmd), timeout...)
}

// RequireAbsent waits the whole window and fails if a line matches re.
func (tc *Context) RequireAbsent(c *transport.Conn, re *regexp.Regexp, window time.Duration) {
	m := assertions.ExpectAbsent(c, re, window, assertions.WithPoll(tc.settings.PollInterval))
	if !m.Matched {
		tc.Failf("[%s] unexpected line matching /%s/: %s", c.Label(), re, lastLine(m.Seen))
	}
}

// Drain reads lines until none arrives for quiet and returns them.
func (tc *Context) Drain(c *transport.Conn, quiet time.Duration) []string {
	return assertions.Drain(c, quiet)
}

func (tc *Context) failMatch(c *transport.Conn, m *assertions.Match) {
	if m.Closed && !errors.Is(m.Err, transport.ErrPeerClosed) && !errors.Is(m.Err, transport.ErrClosed) {
		tc.Fault(fmt.Errorf("%s: %w", m.String(), m.Err))
	}
	tc.Failf("%s", m.String())
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
