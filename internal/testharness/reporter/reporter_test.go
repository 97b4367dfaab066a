package reporter_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/internal/testharness/reporter"
	"github.com/ircconform/irctest-go/pkg/log"
)

func result(name string, outcome engine.Outcome, detail string) *engine.Result {
	return &engine.Result{
		Name:     name,
		Scenario: &engine.Scenario{Name: name, Source: "builtin"},
		Outcome:  outcome,
		Detail:   detail,
		Labels:   []string{"A"},
		Transcripts: map[string][]string{
			"A": {":server 001 alice :Welcome", ":server PONG server :tok"},
		},
		Duration: 100 * time.Millisecond,
	}
}

func createSuiteResult() *engine.SuiteResult {
	return &engine.SuiteResult{
		SuiteName: "Conformance Tests",
		Target:    "127.0.0.1:6667",
		Results: []*engine.Result{
			result("Registration: basic errors", engine.OutcomePass, ""),
			result("Nick collision (433)", engine.OutcomeAssertion, "Expected 433 ERR_NICKNAMEINUSE: [N2] expected /\\s433\\s/ within 1s\n    :server 001 charlie"),
			result("WHOIS + PING/PONG", engine.OutcomeFault, "connection error: dial 127.0.0.1:6667: refused"),
			result("PASS wrong -> 464", engine.OutcomeSkipped, "server password not configured"),
		},
		PassCount:  1,
		FailCount:  2,
		FaultCount: 1,
		SkipCount:  1,
		Duration:   500 * time.Millisecond,
	}
}

func TestTextReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, reporter.TextOptions{})

	suite := createSuiteResult()
	for _, res := range suite.Results {
		r.ReportTest(res)
	}
	r.ReportSuite(suite)
	out := buf.String()

	assert.Contains(t, out, "[PASS] Registration: basic errors (100ms)")
	assert.Contains(t, out, "=== FAIL: Nick collision (433): Expected 433")
	assert.Contains(t, out, "=== ERROR: WHOIS + PING/PONG: connection error")
	assert.Contains(t, out, "[SKIP] PASS wrong -> 464: server password not configured")
	assert.Contains(t, out, "2 TEST(S) FAILED (1/3, 1 skipped)")
	assert.Contains(t, out, " - Nick collision (433): Expected 433 ERR_NICKNAMEINUSE")
	assert.Contains(t, out, " - WHOIS + PING/PONG: connection error")
	assert.NotContains(t, out, "\x1b[", "colour disabled")
	assert.NotContains(t, out, "received 2 line(s)", "transcripts only in verbose mode")
}

func TestTextReporterAllPassed(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, reporter.TextOptions{})
	r.ReportSuite(&engine.SuiteResult{
		Results:   []*engine.Result{result("a", engine.OutcomePass, ""), result("b", engine.OutcomePass, "")},
		PassCount: 2,
	})
	assert.Equal(t, "\nALL TESTS PASSED (2/2)\n", buf.String())
}

func TestTextReporterVerbose(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, reporter.TextOptions{Verbose: true})

	r.StartTest(&engine.Scenario{Name: "Nick collision (433)"})
	r.Transcript("N2", log.DirectionOut, "NICK bob")
	r.Transcript("N2", log.DirectionIn, ":server 433 charlie bob :Nickname is already in use")
	r.Transcript("N2", log.DirectionLocal, "closed")
	r.ReportTest(result("Nick collision (433)", engine.OutcomeAssertion, "nope"))
	r.ReportTest(result("ok", engine.OutcomePass, ""))
	out := buf.String()

	assert.Contains(t, out, "=== RUN: Nick collision (433) ===")
	assert.Contains(t, out, "[N2] >>> NICK bob")
	assert.Contains(t, out, "[N2] <<< :server 433")
	assert.Contains(t, out, "[N2] closed")
	assert.Contains(t, out, "--- A received 2 line(s)")
	assert.Contains(t, out, "    :server PONG server :tok")
	assert.Contains(t, out, "=== OK: ok (100ms) ===")
}

func TestTextReporterColor(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, reporter.TextOptions{Color: true})
	r.ReportTest(result("a", engine.OutcomePass, ""))
	assert.Contains(t, buf.String(), "\x1b[32m")
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf, true)

	suite := createSuiteResult()
	for _, res := range suite.Results {
		r.ReportTest(res)
	}
	assert.Zero(t, buf.Len(), "nothing written before the suite ends")
	r.ReportSuite(suite)

	var got reporter.JSONSuiteResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "127.0.0.1:6667", got.Target)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 1, got.Skipped)
	assert.InDelta(t, 33.3, got.PassRate, 0.1)

	require.Len(t, got.Tests, 4)
	statuses := make([]string, len(got.Tests))
	for i, tr := range got.Tests {
		statuses[i] = tr.Status
	}
	assert.Equal(t, []string{"passed", "failed", "error", "skipped"}, statuses)
	assert.Empty(t, got.Tests[0].Transcripts)
	assert.Len(t, got.Tests[1].Transcripts["A"], 2)
	assert.Equal(t, "builtin", got.Tests[0].Source)
}

func TestJSONReporterCompact(t *testing.T) {
	var buf bytes.Buffer
	reporter.NewJSONReporter(&buf, false).ReportSuite(createSuiteResult())
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

type junitSuite struct {
	XMLName  xml.Name `xml:"testsuite"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Errors   int      `xml:"errors,attr"`
	Skipped  int      `xml:"skipped,attr"`
	Cases    []struct {
		Name    string    `xml:"name,attr"`
		Failure *struct{} `xml:"failure"`
		Error   *struct{} `xml:"error"`
		Skipped *struct{} `xml:"skipped"`
		Body    string    `xml:",innerxml"`
	} `xml:"testcase"`
}

func TestJUnitReporter(t *testing.T) {
	var buf bytes.Buffer
	suite := createSuiteResult()
	suite.Results[1].Transcripts["A"] = append(suite.Results[1].Transcripts["A"], "tricky ]]> <line>")
	reporter.NewJUnitReporter(&buf).ReportSuite(suite)

	var got junitSuite
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &got), buf.String())
	assert.Equal(t, 4, got.Tests)
	assert.Equal(t, 1, got.Failures)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 1, got.Skipped)

	require.Len(t, got.Cases, 4)
	assert.Equal(t, "Nick collision (433)", got.Cases[1].Name)
	assert.NotNil(t, got.Cases[1].Failure)
	assert.NotNil(t, got.Cases[2].Error)
	assert.NotNil(t, got.Cases[3].Skipped)
	assert.Nil(t, got.Cases[0].Failure)
}

func TestHooks(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, reporter.TextOptions{Verbose: true})
	cfg := engine.DefaultConfig()
	reporter.Hooks(cfg, r)

	cfg.OnTestStart(&engine.Scenario{Name: "hooked"})
	cfg.OnTestComplete(result("hooked", engine.OutcomePass, ""))
	assert.Contains(t, buf.String(), "=== RUN: hooked ===")
	assert.Contains(t, buf.String(), "=== OK: hooked")
}

// overlapWriter records whether two Write calls were ever in flight at once.
type overlapWriter struct {
	active  atomic.Int32
	overlap atomic.Bool
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (w *overlapWriter) Write(p []byte) (int, error) {
	if w.active.Add(1) > 1 {
		w.overlap.Store(true)
	}
	defer w.active.Add(-1)
	time.Sleep(50 * time.Microsecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestTextReporterTranscriptConcurrent(t *testing.T) {
	w := &overlapWriter{}
	r := reporter.NewTextReporter(w, reporter.TextOptions{Verbose: true, Color: true})

	const conns, lines = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label := string(rune('A' + i))
			for j := 0; j < lines; j++ {
				r.Transcript(label, log.DirectionIn, ":server PONG server :tok")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.ReportTest(result("PING -> PONG", engine.OutcomePass, ""))
	}()
	wg.Wait()

	assert.False(t, w.overlap.Load(), "writes from different goroutines interleaved")
	out := w.buf.String()
	assert.Equal(t, conns*lines, strings.Count(out, "<<< :server PONG server :tok"))
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.True(t, strings.Contains(line, "<<<") || strings.Contains(line, "PING -> PONG"), "mangled line %q", line)
	}
}
