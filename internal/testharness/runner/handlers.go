package runner

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ircconform/irctest-go/internal/testharness/assertions"
	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/internal/testharness/loader"
	"github.com/ircconform/irctest-go/internal/testharness/scenarios"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// NewActions returns the action table for YAML scenarios.
func NewActions() *engine.Actions {
	a := engine.NewActions()

	// Connection handlers
	a.Register(ActionConnect, handleConnect)
	a.Register(ActionRegister, handleRegister)
	a.Register(ActionClose, handleClose)
	a.Register(ActionAbort, handleAbort)
	a.Register(ActionPause, handlePause)
	a.Register(ActionResume, handleResume)

	// Traffic handlers
	a.Register(ActionSend, handleSend)
	a.Register(ActionSendRaw, handleSendRaw)

	// Expectation handlers
	a.Register(ActionExpect, handleExpect)
	a.Register(ActionExpectNumeric, handleExpectNumeric)
	a.Register(ActionExpectCommand, handleExpectCommand)
	a.Register(ActionProbe, handleProbe)
	a.Register(ActionDrain, handleDrain)

	// Utility handlers
	a.Register(ActionSleep, handleSleep)
	return a
}

// stepConn returns the connection a step names.
func stepConn(tc *engine.Context, step *loader.Step) (*transport.Conn, error) {
	if step.Conn == "" {
		return nil, fmt.Errorf("%w: %s needs conn", ErrNoConnection, step.Action)
	}
	c := tc.Conn(step.Conn)
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoConnection, step.Conn)
	}
	return c, nil
}

// matchError turns a missed Match into an assertion failure, or a fault when
// the connection broke for a reason other than a close.
func matchError(m *assertions.Match) error {
	if m.Matched {
		return nil
	}
	if m.Closed && !errors.Is(m.Err, transport.ErrPeerClosed) && !errors.Is(m.Err, transport.ErrClosed) {
		return fmt.Errorf("%s: %w", m, m.Err)
	}
	return engine.Failf("%s", m)
}

// expect waits for re on the step's connection and stores the line and any
// named groups under the save key.
func expect(tc *engine.Context, step *loader.Step, re *regexp.Regexp) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	timeout, err := step.TimeoutOr(tc.Settings().ExpectTimeout)
	if err != nil {
		return fmt.Errorf("invalid step timeout: %w", err)
	}

	m := tc.Expect(c, re, timeout)
	if err := matchError(m); err != nil {
		return err
	}
	if key := step.String(ParamSave); key != "" {
		tc.Set(key, m.Line)
	}
	if sub := re.FindStringSubmatch(m.Line); sub != nil {
		for i, name := range re.SubexpNames() {
			if name != "" {
				tc.Set(name, sub[i])
			}
		}
	}
	return nil
}

func handleConnect(tc *engine.Context, step *loader.Step) error {
	if step.Conn == "" {
		return fmt.Errorf("%w: connect needs conn", ErrNoConnection)
	}
	_, err := tc.Dial(step.Conn)
	return err
}

// handleRegister dials the connection if needed and registers it.
func handleRegister(tc *engine.Context, step *loader.Step) error {
	nick := step.String(ParamNick)
	if nick == "" {
		return fmt.Errorf("register needs %s", ParamNick)
	}
	c := tc.Conn(step.Conn)
	if c == nil {
		var err error
		if c, err = tc.Dial(step.Conn); err != nil {
			return err
		}
	}
	return scenarios.RegisterConn(tc, c, scenarios.Registration{
		Label: step.Conn,
		Nick:  nick,
		User:  step.String(ParamUser),
		Real:  step.String(ParamReal),
	})
}

func handleClose(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	return c.Close()
}

func handleAbort(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	return c.Abort()
}

func handlePause(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	c.Pause()
	return nil
}

func handleResume(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	c.Resume()
	return nil
}

// handleSend sends line, or every entry of lines, adding terminators.
func handleSend(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	lines := step.Strings(ParamLines)
	if line := step.String(ParamLine); line != "" {
		lines = append([]string{line}, lines...)
	}
	if len(lines) == 0 {
		return fmt.Errorf("send needs %s or %s", ParamLine, ParamLines)
	}
	for _, line := range lines {
		if err := c.Send(line); err != nil {
			return err
		}
	}
	return nil
}

// handleSendRaw writes data verbatim, or chunks one write each with delay
// between them.
func handleSendRaw(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	chunks := step.Strings(ParamChunks)
	if data := step.String(ParamData); data != "" {
		chunks = append([]string{data}, chunks...)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("send_raw needs %s or %s", ParamData, ParamChunks)
	}
	delay := step.Duration(ParamDelay, scenarios.FragmentDelay)
	for i, chunk := range chunks {
		if i > 0 {
			tc.Sleep(delay)
		}
		if err := c.SendRaw([]byte(chunk)); err != nil {
			return err
		}
	}
	return nil
}

// handleExpect waits for pattern. With absent set, the step instead fails
// if a matching line arrives within the timeout.
func handleExpect(tc *engine.Context, step *loader.Step) error {
	pattern := step.String(ParamPattern)
	if pattern == "" {
		return fmt.Errorf("expect needs %s", ParamPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if !step.Bool(ParamAbsent) {
		return expect(tc, step, re)
	}

	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	window, err := step.TimeoutOr(tc.Settings().ExpectTimeout)
	if err != nil {
		return fmt.Errorf("invalid step timeout: %w", err)
	}
	m := assertions.ExpectAbsent(c, re, window, assertions.WithPoll(tc.Settings().PollInterval))
	if !m.Matched {
		return engine.Failf("[%s] unexpected line matching /%s/: %s", c.Label(), re, lastOf(m.Seen))
	}
	return nil
}

// handleExpectNumeric waits for a numeric reply. wording is checked only in
// strict mode.
func handleExpectNumeric(tc *engine.Context, step *loader.Step) error {
	code := step.String(ParamCode)
	if code == "" {
		return fmt.Errorf("expect_numeric needs %s", ParamCode)
	}
	spec := assertions.Numeric(code).
		WithContains(step.String(ParamContains)).
		WithWording(step.String(ParamWording))
	return expect(tc, step, spec.Pattern(tc.Strict()))
}

func handleExpectCommand(tc *engine.Context, step *loader.Step) error {
	cmd := step.String(ParamCommand)
	if cmd == "" {
		return fmt.Errorf("expect_command needs %s", ParamCommand)
	}
	return expect(tc, step, assertions.CommandPattern(cmd))
}

// handleProbe sends PING with token and waits for the matching PONG.
func handleProbe(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	token := step.String(ParamToken)
	if token == "" {
		token = "probe-" + step.Conn
	}
	timeout, err := step.TimeoutOr(scenarios.ProbeTimeout)
	if err != nil {
		return fmt.Errorf("invalid step timeout: %w", err)
	}
	if err := c.SendCommand("PING", token); err != nil {
		return err
	}
	re := regexp.MustCompile(`\sPONG\b.*` + regexp.QuoteMeta(token))
	if err := matchError(tc.Expect(c, re, timeout)); err != nil {
		return fmt.Errorf("liveness probe %q unanswered: %w", token, err)
	}
	return nil
}

// handleDrain reads until quiet. With min set, fewer lines is a failure.
func handleDrain(tc *engine.Context, step *loader.Step) error {
	c, err := stepConn(tc, step)
	if err != nil {
		return err
	}
	lines := tc.Drain(c, step.Duration(ParamQuiet, scenarios.QuietPeriod))
	if key := step.String(ParamSave); key != "" {
		tc.Set(key, len(lines))
	}
	if want := step.Int(ParamMin, 0); len(lines) < want {
		return engine.Failf("[%s] drained %d line(s), want at least %d", c.Label(), len(lines), want)
	}
	return nil
}

func handleSleep(tc *engine.Context, step *loader.Step) error {
	d := step.Duration(ParamDuration, 0)
	if d <= 0 {
		return fmt.Errorf("sleep needs a positive %s", ParamDuration)
	}
	tc.Sleep(d)
	return nil
}

func lastOf(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
