// Package reporter provides test result formatting and output.
package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/pkg/log"
)

// Reporter consumes scenario results as the engine produces them.
type Reporter interface {
	// StartTest is called before a scenario runs.
	StartTest(s *engine.Scenario)

	// ReportTest reports the result of a single scenario.
	ReportTest(result *engine.Result)

	// ReportSuite reports the outcome of the whole run.
	ReportSuite(result *engine.SuiteResult)
}

// Hooks wires r into an engine configuration.
func Hooks(cfg *engine.EngineConfig, r Reporter) {
	cfg.OnTestStart = r.StartTest
	cfg.OnTestComplete = r.ReportTest
}

// TextOptions configures a TextReporter.
type TextOptions struct {
	// Verbose prints scenario headers, the live transcript and, for
	// failures, every line received per connection.
	Verbose bool

	// Color enables ANSI colours.
	Color bool
}

// TextReporter outputs human-readable text reports. Transcript is called
// from every connection's reader goroutine, so all output is serialized.
type TextReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool

	pass  *color.Color
	fail  *color.Color
	skip  *color.Color
	bold  *color.Color
	sent  *color.Color
	recv  *color.Color
	local *color.Color
}

// NewTextReporter creates a new text reporter.
func NewTextReporter(w io.Writer, opts TextOptions) *TextReporter {
	r := &TextReporter{
		writer:  w,
		verbose: opts.Verbose,
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		skip:    color.New(color.FgYellow),
		bold:    color.New(color.Bold),
		sent:    color.New(color.FgYellow),
		recv:    color.New(color.FgGreen),
		local:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{r.pass, r.fail, r.skip, r.bold, r.sent, r.recv, r.local} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// StartTest prints the scenario header in verbose mode.
func (r *TextReporter) StartTest(s *engine.Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.verbose {
		r.bold.Fprintf(r.writer, "\n=== RUN: %s ===\n", s.Name)
	}
}

// Transcript echoes one protocol line. It matches the signature of
// engine.Settings.Echo.
func (r *TextReporter) Transcript(label string, dir log.Direction, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch dir {
	case log.DirectionOut:
		r.sent.Fprintf(r.writer, "[%s] >>> %s\n", label, line)
	case log.DirectionIn:
		r.recv.Fprintf(r.writer, "[%s] <<< %s\n", label, line)
	default:
		r.local.Fprintf(r.writer, "[%s] %s\n", label, line)
	}
}

// ReportTest reports a single scenario result in text format.
func (r *TextReporter) ReportTest(result *engine.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dur := result.Duration.Round(time.Millisecond)
	switch result.Outcome {
	case engine.OutcomePass:
		if r.verbose {
			r.pass.Fprintf(r.writer, "=== OK: %s (%s) ===\n", result.Name, dur)
		} else {
			r.pass.Fprintf(r.writer, "[PASS] %s (%s)\n", result.Name, dur)
		}
	case engine.OutcomeSkipped:
		r.skip.Fprintf(r.writer, "[SKIP] %s: %s\n", result.Name, result.Detail)
	default:
		r.fail.Fprintf(r.writer, "=== %s: %s: %s ===\n", result.Outcome, result.Name, result.Detail)
		if r.verbose {
			r.writeTranscripts(result)
		}
	}
}

func (r *TextReporter) writeTranscripts(result *engine.Result) {
	labels := result.Labels
	if len(labels) == 0 {
		for l := range result.Transcripts {
			labels = append(labels, l)
		}
		sort.Strings(labels)
	}
	for _, label := range labels {
		lines := result.Transcripts[label]
		fmt.Fprintf(r.writer, "    --- %s received %d line(s)\n", label, len(lines))
		for _, l := range lines {
			fmt.Fprintf(r.writer, "    %s\n", l)
		}
	}
}

// ReportSuite prints the run summary.
func (r *TextReporter) ReportSuite(result *engine.SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.writer)

	counts := fmt.Sprintf("%d/%d", result.PassCount, result.Total())
	if result.SkipCount > 0 {
		counts += fmt.Sprintf(", %d skipped", result.SkipCount)
	}

	if result.FailCount == 0 {
		r.pass.Fprintf(r.writer, "ALL TESTS PASSED (%s)\n", counts)
		return
	}
	r.fail.Fprintf(r.writer, "%d TEST(S) FAILED (%s)\n", result.FailCount, counts)
	for _, f := range result.Failures() {
		r.fail.Fprintf(r.writer, " - %s: %s\n", f.Name, firstLine(f.Detail))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// statusOf maps an outcome to the lower-case status used by the machine
// readable formats.
func statusOf(o engine.Outcome) string {
	switch o {
	case engine.OutcomePass:
		return "passed"
	case engine.OutcomeAssertion:
		return "failed"
	case engine.OutcomeFault:
		return "error"
	case engine.OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
