package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ircconform/irctest-go/pkg/transport"
)

// ErrDuplicateScenario is returned when a name is registered twice.
var ErrDuplicateScenario = errors.New("duplicate scenario name")

// ErrDuplicateLabel is returned when a Context already has a connection with
// the requested label.
var ErrDuplicateLabel = errors.New("duplicate connection label")

// ErrScenarioTimeout ends a scenario that ran past its timeout.
var ErrScenarioTimeout = errors.New("scenario timed out")

// LeakedScenarioNote is appended to a result's detail when the scenario
// goroutine was still running once the teardown grace expired.
const LeakedScenarioNote = "scenario goroutine still running after teardown grace"

// AssertionError reports a protocol expectation that did not hold.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Failf returns an AssertionError with a formatted message. Returning it from
// a scenario's Run records an assertion failure.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// SkipError ends a scenario without running the rest of it, for example
// when the target lacks a precondition.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skipf returns a SkipError with a formatted reason.
func Skipf(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsAssertion reports whether err is or wraps an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// Classify maps an error returned by a scenario to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePass
	case errors.As(err, new(*SkipError)):
		return OutcomeSkipped
	case IsAssertion(err):
		return OutcomeAssertion
	default:
		return OutcomeFault
	}
}

// describeFault renders a fault for the result detail.
func describeFault(err error) string {
	switch {
	case errors.Is(err, ErrScenarioTimeout):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case transport.IsConnError(err):
		return "connection error: " + err.Error()
	default:
		return "unhandled: " + err.Error()
	}
}
