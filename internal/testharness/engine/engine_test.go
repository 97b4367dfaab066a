package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/internal/testharness/mock"
)

func startMock(t *testing.T) *mock.Server {
	t.Helper()
	srv := mock.New(mock.Config{})
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })
	return srv
}

func newEngine(addr string) *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.Settings.Address = addr
	cfg.Settings.ExpectTimeout = 500 * time.Millisecond
	cfg.DefaultTimeout = 5 * time.Second
	cfg.TeardownGrace = time.Second
	cfg.Logger = slog.New(slog.DiscardHandler)
	return engine.NewWithConfig(cfg)
}

func run(t *testing.T, e *engine.Engine, fn func(tc *engine.Context) error) *engine.Result {
	t.Helper()
	return e.RunScenario(context.Background(), &engine.Scenario{Name: t.Name(), Run: fn})
}

func register(tc *engine.Context, label, nick string) {
	c := tc.Open(label)
	tc.Sendf(c, "NICK %s", nick)
	tc.Sendf(c, "USER %s 0 * :%s", nick, nick)
	tc.RequireCode(c, "001", nick)
}

func TestRunScenarioPass(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		register(tc, "A", "alice")
		tc.Send(tc.Conn("A"), "PING tok")
		line := tc.RequireCommand(tc.Conn("A"), "PONG")
		assert.Contains(t, line, "tok")
		return nil
	})

	assert.Equal(t, engine.OutcomePass, r.Outcome, r.Detail)
	assert.Equal(t, []string{"A"}, r.Labels)
	assert.NotEmpty(t, r.Transcripts["A"])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.WaitClients(ctx, 0), "connections closed after scenario")
}

func TestRunScenarioAssertion(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		c := tc.Open("A")
		tc.Send(c, "PING tok")
		tc.RequireCode(c, "999", "")
		t.Error("scenario continued after a failed requirement")
		return nil
	})

	assert.Equal(t, engine.OutcomeAssertion, r.Outcome)
	assert.Contains(t, r.Detail, "[A]")
	assert.Contains(t, r.Detail, "PONG", "diagnostic lists received lines")
	assert.True(t, r.Failed())
}

func TestRunScenarioReturnedErrors(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		return engine.Failf("expected %d, got %d", 1, 2)
	})
	assert.Equal(t, engine.OutcomeAssertion, r.Outcome)
	assert.Equal(t, "expected 1, got 2", r.Detail)

	r = run(t, e, func(tc *engine.Context) error {
		return errors.New("scenario bug")
	})
	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.Equal(t, "unhandled: scenario bug", r.Detail)
}

func TestRunScenarioConnectFault(t *testing.T) {
	srv := startMock(t)
	addr := srv.Addr()
	require.NoError(t, srv.Close())

	r := run(t, newEngine(addr), func(tc *engine.Context) error {
		tc.Open("A")
		return nil
	})

	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.Contains(t, r.Detail, "connection error")
}

func TestRunScenarioPanic(t *testing.T) {
	e := newEngine("127.0.0.1:1")
	r := run(t, e, func(tc *engine.Context) error {
		var m map[string]int
		m["boom"] = 1
		return nil
	})

	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.Contains(t, r.Detail, "unhandled: panic")
}

func TestRunScenarioTimeout(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	s := &engine.Scenario{
		Name:    "hangs",
		Timeout: 200 * time.Millisecond,
		Run: func(tc *engine.Context) error {
			c := tc.Open("A")
			tc.Require(c, regexp.MustCompile(`never`), time.Minute)
			return nil
		},
	}

	start := time.Now()
	r := e.RunScenario(context.Background(), s)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.Contains(t, r.Detail, "scenario timed out")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.WaitClients(ctx, 0))
}

func TestRunScenarioLeakedAfterGrace(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Settings.Address = "127.0.0.1:1"
	cfg.TeardownGrace = 50 * time.Millisecond
	cfg.Logger = slog.New(slog.DiscardHandler)
	e := engine.NewWithConfig(cfg)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	s := &engine.Scenario{
		Name:    "stuck",
		Timeout: 100 * time.Millisecond,
		Run: func(tc *engine.Context) error {
			// Blocks outside any wait the engine can interrupt.
			<-release
			return nil
		},
	}

	start := time.Now()
	r := e.RunScenario(context.Background(), s)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.Contains(t, r.Detail, "scenario timed out")
	assert.Contains(t, r.Detail, engine.LeakedScenarioNote)
}

func TestSleepCancelled(t *testing.T) {
	e := newEngine("127.0.0.1:1")
	r := e.RunScenario(context.Background(), &engine.Scenario{
		Name:    "sleeper",
		Timeout: 100 * time.Millisecond,
		Run: func(tc *engine.Context) error {
			tc.Sleep(time.Minute)
			return nil
		},
	})
	assert.Equal(t, engine.OutcomeFault, r.Outcome)
	assert.True(t, errors.Is(r.Err, engine.ErrScenarioTimeout))
}

func TestDuplicateLabel(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		tc.Open("A")
		_, err := tc.Dial("A")
		if !errors.Is(err, engine.ErrDuplicateLabel) {
			return engine.Failf("want duplicate label error, got %v", err)
		}
		return nil
	})
	assert.Equal(t, engine.OutcomePass, r.Outcome, r.Detail)
}

func TestDialContextCancelled(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		ctx, cancel := context.WithCancel(tc.Context())
		cancel()
		if _, err := tc.DialContext(ctx, "A"); err == nil {
			return engine.Failf("dial under a cancelled context succeeded")
		}
		// The failed dial released its label.
		c, err := tc.Dial("A")
		if err != nil {
			return err
		}
		tc.Send(c, "PING tok")
		tc.RequireCommand(c, "PONG")
		return nil
	})
	assert.Equal(t, engine.OutcomePass, r.Outcome, r.Detail)
}

func TestRequireAbsent(t *testing.T) {
	srv := startMock(t)
	e := newEngine(srv.Addr())

	r := run(t, e, func(tc *engine.Context) error {
		register(tc, "A", "quiet")
		tc.Drain(tc.Conn("A"), 50*time.Millisecond)
		tc.RequireAbsent(tc.Conn("A"), regexp.MustCompile(`PRIVMSG`), 100*time.Millisecond)
		tc.Send(tc.Conn("A"), "PING x")
		tc.RequireAbsent(tc.Conn("A"), regexp.MustCompile(`PONG`), 300*time.Millisecond)
		return nil
	})
	assert.Equal(t, engine.OutcomeAssertion, r.Outcome)
	assert.Contains(t, r.Detail, "unexpected line")
}

func TestRunSuite(t *testing.T) {
	srv := startMock(t)

	ok := &engine.Scenario{Name: "ok", Run: func(tc *engine.Context) error { return nil }}
	bad := &engine.Scenario{Name: "bad", Run: func(tc *engine.Context) error { return engine.Failf("nope") }}
	skipped := &engine.Scenario{Name: "skipped", Skip: "not today", Run: func(tc *engine.Context) error { return nil }}
	after := &engine.Scenario{Name: "after", Run: func(tc *engine.Context) error { return nil }}

	t.Run("runs everything", func(t *testing.T) {
		var started, completed []string
		e := newEngine(srv.Addr())
		e.Config().OnTestStart = func(s *engine.Scenario) { started = append(started, s.Name) }
		e.Config().OnTestComplete = func(r *engine.Result) { completed = append(completed, r.Name) }

		suite := e.RunSuite(context.Background(), []*engine.Scenario{ok, bad, skipped, after})
		assert.Equal(t, 2, suite.PassCount)
		assert.Equal(t, 1, suite.FailCount)
		assert.Equal(t, 1, suite.SkipCount)
		assert.Equal(t, 3, suite.Total())
		assert.Equal(t, []string{"ok", "bad", "skipped", "after"}, started)
		assert.Equal(t, started, completed)
		require.Len(t, suite.Failures(), 1)
		assert.Equal(t, "bad", suite.Failures()[0].Name)
		assert.Equal(t, "not today", suite.Results[2].Detail)
	})

	t.Run("stop on first failure", func(t *testing.T) {
		e := newEngine(srv.Addr())
		e.Config().StopOnFirstFailure = true
		suite := e.RunSuite(context.Background(), []*engine.Scenario{ok, bad, after})
		assert.Len(t, suite.Results, 2)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		suite := newEngine(srv.Addr()).RunSuite(ctx, []*engine.Scenario{ok})
		assert.Empty(t, suite.Results)
	})
}

func TestEngineRunSelection(t *testing.T) {
	reg := engine.NewRegistry()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("s%d", i)
		reg.MustRegister(&engine.Scenario{Name: name, Run: func(tc *engine.Context) error {
			if name == "s1" {
				return engine.Failf("s1 fails")
			}
			return nil
		}})
	}

	failed, results := newEngine("127.0.0.1:1").Run(context.Background(), reg, engine.Selection{Names: []string{"s1", "s2"}})
	assert.Equal(t, 1, failed)
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].Name)
	assert.Equal(t, "s2", results[1].Name)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "PASS", engine.OutcomePass.String())
	assert.Equal(t, "FAIL", engine.OutcomeAssertion.String())
	assert.Equal(t, "ERROR", engine.OutcomeFault.String())
	assert.Equal(t, "SKIP", engine.OutcomeSkipped.String())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, engine.OutcomePass, engine.Classify(nil))
	assert.Equal(t, engine.OutcomeAssertion, engine.Classify(fmt.Errorf("step 2: %w", engine.Failf("x"))))
	assert.Equal(t, engine.OutcomeFault, engine.Classify(errors.New("x")))
}

func TestRunScenarioSkip(t *testing.T) {
	e := newEngine("127.0.0.1:1")

	r := run(t, e, func(tc *engine.Context) error {
		tc.Skipf("no password configured")
		t.Error("scenario continued after Skipf")
		return nil
	})
	assert.Equal(t, engine.OutcomeSkipped, r.Outcome)
	assert.Equal(t, "no password configured", r.Detail)
	assert.False(t, r.Failed())

	r = run(t, e, func(tc *engine.Context) error {
		return fmt.Errorf("precondition: %w", engine.Skipf("needs %s", "TLS"))
	})
	assert.Equal(t, engine.OutcomeSkipped, r.Outcome)
	assert.Equal(t, "needs TLS", r.Detail)
}
