package scenarios

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ircconform/irctest-go/internal/testharness/assertions"
	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// Timing used by the built-in battery.
const (
	// ReplyTimeout bounds a numeric reply or broadcast.
	ReplyTimeout = time.Second

	// RegisterTimeout bounds the wait for 001 during registration.
	RegisterTimeout = 2 * time.Second

	// ProbeTimeout bounds a liveness round trip under load.
	ProbeTimeout = 1500 * time.Millisecond

	// QuietPeriod is the default silence that ends DrainUntilSilent.
	QuietPeriod = 150 * time.Millisecond
)

// Registration describes one client to register.
type Registration struct {
	Label string
	Nick  string
	User  string
	Real  string
}

func (r Registration) user() string {
	if r.User != "" {
		return r.User
	}
	return r.Nick + "u"
}

func (r Registration) real() string {
	if r.Real != "" {
		return r.Real
	}
	return "Real"
}

// RegisterConn sends PASS (when a password is configured), NICK and USER on
// c and waits for 001. It never ends the scenario, so it may run on any
// goroutine.
func RegisterConn(tc *engine.Context, c *transport.Conn, r Registration) error {
	if pw := tc.Password(); pw != "" {
		if err := c.SendCommand("PASS", pw); err != nil {
			return err
		}
	}
	if err := c.SendCommand("NICK", r.Nick); err != nil {
		return err
	}
	if err := c.SendCommand("USER", r.user(), "host", "server", r.real()); err != nil {
		return err
	}

	m := assertions.Expect(c, assertions.NumericPattern("001", ""), RegisterTimeout,
		assertions.WithPoll(tc.Settings().PollInterval))
	if m.Matched {
		return nil
	}
	if m.Closed && !errors.Is(m.Err, transport.ErrPeerClosed) && !errors.Is(m.Err, transport.ErrClosed) {
		return fmt.Errorf("registering %s: %w", r.Nick, m.Err)
	}
	return engine.Failf("registration of %s failed: %s", r.Nick, m)
}

// RegisterNick opens a connection labelled label and registers nick on it.
func RegisterNick(tc *engine.Context, label, nick string) *transport.Conn {
	c := tc.Open(label)
	tc.Check(RegisterConn(tc, c, Registration{Label: label, Nick: nick}))
	return c
}

// RegisterAll opens and registers every client concurrently, one goroutine
// per connection, and returns the connections in argument order.
func RegisterAll(tc *engine.Context, regs ...Registration) []*transport.Conn {
	conns := make([]*transport.Conn, len(regs))
	g, gctx := errgroup.WithContext(tc.Context())
	for i, r := range regs {
		g.Go(func() error {
			c, err := tc.DialContext(gctx, r.Label)
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			conns[i] = c
			return RegisterConn(tc, c, r)
		})
	}
	tc.Check(g.Wait())
	return conns
}

// DrainUntilSilent reads lines until none arrives for quiet.
func DrainUntilSilent(tc *engine.Context, c *transport.Conn, quiet ...time.Duration) []string {
	d := QuietPeriod
	if len(quiet) > 0 && quiet[0] > 0 {
		d = quiet[0]
	}
	lines := tc.Drain(c, d)
	if len(lines) > 0 {
		tc.Logf("[%s] drained %d line(s)", c.Label(), len(lines))
	}
	return lines
}

// Probe sends PING with a unique token and requires the matching PONG within
// timeout.
func Probe(tc *engine.Context, c *transport.Conn, token string, timeout time.Duration) {
	tc.SendCommand(c, "PING", token)
	m := tc.ExpectPattern(c, fmt.Sprintf(`\sPONG\b.*%s`, regexp.QuoteMeta(token)), timeout)
	if !m.Matched {
		tc.Failf("liveness probe %q unanswered: %s", token, m)
	}
}

// PendingPong is a PING sent on a connection whose PONG is due by Deadline.
type PendingPong struct {
	Token    string
	Deadline time.Time
}

// SendPing sends PING token on c. The reply is due within of the send.
func SendPing(tc *engine.Context, c *transport.Conn, token string, within time.Duration) PendingPong {
	tc.SendCommand(c, "PING", token)
	return PendingPong{Token: token, Deadline: time.Now().Add(within)}
}

// AwaitPongs requires every pending PONG on c to arrive before its own
// deadline. A PONG answered late fails even when it is already buffered.
func AwaitPongs(tc *engine.Context, c *transport.Conn, pending ...PendingPong) {
	for _, p := range pending {
		remaining := time.Until(p.Deadline)
		if remaining <= 0 {
			tc.Failf("PONG %q missed its deadline before it was read", p.Token)
		}
		m := tc.ExpectPattern(c, fmt.Sprintf(`\sPONG\b.*%s\b`, regexp.QuoteMeta(p.Token)), remaining)
		if !m.Matched {
			tc.Failf("PONG %q not received within its deadline: %s", p.Token, m)
		}
	}
}

// Join joins channel on every connection and waits for each NAMES reply.
func Join(tc *engine.Context, channel string, conns ...*transport.Conn) {
	for _, c := range conns {
		tc.SendCommand(c, "JOIN", channel)
	}
	for _, c := range conns {
		expectCode(tc, c, "353", "")
	}
}

// expectNumeric requires spec on c, failing with msg.
func expectNumeric(tc *engine.Context, c *transport.Conn, spec assertions.NumericSpec, msg string) string {
	m := tc.Expect(c, spec.Pattern(tc.Strict()), ReplyTimeout)
	if !m.Matched {
		tc.Failf("%s: %s", msg, m)
	}
	return m.Line
}

func expectCode(tc *engine.Context, c *transport.Conn, code, contains string) string {
	return tc.RequireCode(c, code, contains, ReplyTimeout)
}

func expectCommand(tc *engine.Context, c *transport.Conn, cmd, msg string) string {
	m := tc.Expect(c, assertions.CommandPattern(cmd), ReplyTimeout)
	if !m.Matched {
		tc.Failf("%s: %s", msg, m)
	}
	return m.Line
}

func expectReply(tc *engine.Context, c *transport.Conn, code, msg string) string {
	return expectNumeric(tc, c, assertions.Numeric(code), msg)
}

func commandRE(cmd string) *regexp.Regexp { return assertions.CommandPattern(cmd) }

func codeRE(code string) *regexp.Regexp { return assertions.NumericPattern(code, "") }
