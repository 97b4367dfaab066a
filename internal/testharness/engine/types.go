// Package engine provides scenario execution for the test harness.
package engine

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/ircconform/irctest-go/pkg/log"
)

// Outcome classifies how a scenario ended.
type Outcome int

const (
	// OutcomePass means the script completed and every assertion held.
	OutcomePass Outcome = iota

	// OutcomeAssertion means an expectation or invariant check failed.
	OutcomeAssertion

	// OutcomeFault means anything else went wrong: a transport error, a
	// panic, a scenario timeout or a bug in the scenario itself.
	OutcomeFault

	// OutcomeSkipped means the scenario did not run, or stopped early
	// because a precondition was missing.
	OutcomeSkipped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "PASS"
	case OutcomeAssertion:
		return "FAIL"
	case OutcomeFault:
		return "ERROR"
	case OutcomeSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Scenario is a named script run against a fresh Context.
type Scenario struct {
	// Name identifies the scenario for selection. It must be unique within
	// a Registry.
	Name string

	// Description explains what the scenario validates.
	Description string

	// Tags for categorizing scenarios.
	Tags []string

	// Timeout overrides the engine's scenario timeout.
	Timeout time.Duration

	// Skip, when non-empty, is the reason the scenario does not run.
	Skip string

	// Source names where the scenario came from ("builtin" or a file).
	Source string

	// Run executes the script. Returning a non-nil error ends the scenario;
	// Context.Failf and friends end it as well.
	Run func(tc *Context) error
}

// Result is the outcome of a single scenario.
type Result struct {
	// Name is the scenario name.
	Name string

	// Scenario is the scenario that was executed.
	Scenario *Scenario

	// Outcome is the tagged outcome.
	Outcome Outcome

	// Detail is a human-readable explanation for non-passing outcomes.
	Detail string

	// Err is the error that ended the scenario, if any.
	Err error

	// Transcripts holds, per connection label, every line received.
	Transcripts map[string][]string

	// Labels lists the connection labels in creation order.
	Labels []string

	// Duration is how long the scenario took.
	Duration time.Duration

	// StartTime when the scenario started.
	StartTime time.Time

	// EndTime when the scenario finished.
	EndTime time.Time
}

// Passed reports whether the scenario passed.
func (r *Result) Passed() bool {
	return r.Outcome == OutcomePass
}

// Failed reports whether the scenario counts as a failure.
func (r *Result) Failed() bool {
	return r.Outcome == OutcomeAssertion || r.Outcome == OutcomeFault
}

// SuiteResult represents the outcome of running a set of scenarios.
type SuiteResult struct {
	// SuiteName identifies the run.
	SuiteName string

	// Target is the server address.
	Target string

	// Results contains results in execution order.
	Results []*Result

	// PassCount is the number of passed scenarios.
	PassCount int

	// FailCount is the number of assertion failures and faults.
	FailCount int

	// FaultCount is the subset of FailCount that were unexpected faults.
	FaultCount int

	// SkipCount is the number of skipped scenarios.
	SkipCount int

	// Duration is the total time for all scenarios.
	Duration time.Duration
}

// Total returns the number of scenarios that ran.
func (s *SuiteResult) Total() int {
	return s.PassCount + s.FailCount
}

// Failures returns the failing results in order.
func (s *SuiteResult) Failures() []*Result {
	var out []*Result
	for _, r := range s.Results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

func (s *SuiteResult) add(r *Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomePass:
		s.PassCount++
	case OutcomeSkipped:
		s.SkipCount++
	case OutcomeFault:
		s.FaultCount++
		s.FailCount++
	default:
		s.FailCount++
	}
}

// Settings are shared by every Context the engine creates.
type Settings struct {
	// Address is the server's host:port.
	Address string

	// Password is sent with PASS during registration when non-empty.
	Password string

	// TLSConfig selects the TLS transport when non-nil.
	TLSConfig *tls.Config

	// ConnectTimeout bounds dial and handshake.
	ConnectTimeout time.Duration

	// ExpectTimeout is the default wait for expectations.
	ExpectTimeout time.Duration

	// PollInterval is the matcher's polling granularity.
	PollInterval time.Duration

	// WriteTimeout bounds every write.
	WriteTimeout time.Duration

	// Strict enables exact reply wording checks where a scenario
	// specifies them.
	Strict bool

	// ProtocolLogger receives capture events for every connection.
	ProtocolLogger log.Logger

	// Echo, when set, receives every line sent or received.
	Echo func(label string, dir log.Direction, line string)
}

// EngineConfig configures the engine.
type EngineConfig struct {
	// Settings are handed to every scenario's Context.
	Settings Settings

	// DefaultTimeout is the default timeout for a scenario.
	DefaultTimeout time.Duration

	// TeardownGrace is how long the engine waits for a timed-out scenario
	// to unwind after its connections are closed.
	TeardownGrace time.Duration

	// StopOnFirstFailure stops execution after the first failing scenario.
	StopOnFirstFailure bool

	// OnTestStart is called before each scenario runs.
	OnTestStart func(s *Scenario)

	// OnTestComplete is called after each scenario, teardown included.
	OnTestComplete func(result *Result)

	// Logger receives operational debug logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Default timing values.
const (
	DefaultExpectTimeout   = time.Second
	DefaultPollInterval    = 20 * time.Millisecond
	DefaultScenarioTimeout = 30 * time.Second
	DefaultTeardownGrace   = 2 * time.Second
)

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Settings: Settings{
			ExpectTimeout: DefaultExpectTimeout,
			PollInterval:  DefaultPollInterval,
		},
		DefaultTimeout: DefaultScenarioTimeout,
		TeardownGrace:  DefaultTeardownGrace,
	}
}
