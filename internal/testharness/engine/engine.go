package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Engine executes scenarios one at a time.
type Engine struct {
	config *EngineConfig
	logger *slog.Logger
}

// New creates a new engine with default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new engine with the given configuration.
func NewWithConfig(config *EngineConfig) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultScenarioTimeout
	}
	if config.TeardownGrace <= 0 {
		config.TeardownGrace = DefaultTeardownGrace
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: config, logger: logger}
}

// Config returns the engine configuration.
func (e *Engine) Config() *EngineConfig {
	return e.config
}

// Run executes the registry's scenarios, restricted by sel, and returns the
// number of failed scenarios and the results in execution order.
func (e *Engine) Run(ctx context.Context, reg *Registry, sel Selection) (int, []*Result) {
	suite := e.RunSuite(ctx, reg.Select(sel))
	return suite.FailCount, suite.Results
}

// RunSuite executes scenarios strictly in order. Every scenario runs, whatever
// the outcome of the previous one, unless StopOnFirstFailure is set or ctx is
// cancelled.
func (e *Engine) RunSuite(ctx context.Context, scenarios []*Scenario) *SuiteResult {
	result := &SuiteResult{
		SuiteName: "Conformance Tests",
		Target:    e.config.Settings.Address,
	}

	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	for _, s := range scenarios {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		if e.config.OnTestStart != nil {
			e.config.OnTestStart(s)
		}

		r := e.RunScenario(ctx, s)
		result.add(r)

		if e.config.OnTestComplete != nil {
			e.config.OnTestComplete(r)
		}

		if r.Failed() && e.config.StopOnFirstFailure {
			break
		}
	}

	return result
}

// RunScenario executes one scenario under a fault boundary. Its connections
// are closed before RunScenario returns, whatever the outcome.
func (e *Engine) RunScenario(ctx context.Context, s *Scenario) *Result {
	result := &Result{
		Name:      s.Name,
		Scenario:  s,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	if s.Skip != "" {
		result.Outcome = OutcomeSkipped
		result.Detail = s.Skip
		return result
	}

	timeout := e.config.DefaultTimeout
	if s.Timeout > 0 {
		timeout = s.Timeout
	}

	scenarioCtx, cancel := context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w after %v", ErrScenarioTimeout, timeout))
	defer cancel()

	tc := NewContext(scenarioCtx, s.Name, e.config.Settings, e.logger)
	e.logger.Debug("scenario start", "scenario", s.Name, "timeout", timeout)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Debug("scenario panic", "scenario", s.Name, "panic", r, "stack", string(debug.Stack()))
				tc.record(OutcomeFault, fmt.Sprintf("unhandled: panic: %v", r), fmt.Errorf("panic: %v", r))
			}
		}()
		if err := s.Run(tc); err != nil {
			outcome := Classify(err)
			detail := err.Error()
			switch outcome {
			case OutcomeFault:
				detail = describeFault(err)
			case OutcomeSkipped:
				var se *SkipError
				errors.As(err, &se)
				detail = se.Reason
			}
			tc.record(outcome, detail, err)
		}
	}()

	leaked := false
	select {
	case <-done:
	case <-scenarioCtx.Done():
		cause := context.Cause(scenarioCtx)
		tc.record(OutcomeFault, describeFault(cause), cause)
		// Closing the connections unblocks any pending wait in the script.
		tc.CloseAll()
		select {
		case <-done:
		case <-time.After(e.config.TeardownGrace):
			leaked = true
			e.logger.Warn("scenario did not unwind after timeout", "scenario", s.Name, "grace", e.config.TeardownGrace)
		}
	}

	result.Labels = tc.Labels()
	result.Transcripts = tc.Transcripts()
	tc.CloseAll()

	result.Outcome, result.Detail, result.Err = tc.result()
	if leaked {
		result.Detail += fmt.Sprintf("; %s", LeakedScenarioNote)
	}
	e.logger.Debug("scenario end", "scenario", s.Name, "outcome", result.Outcome, "detail", result.Detail)
	return result
}
