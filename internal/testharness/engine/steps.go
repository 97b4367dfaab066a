package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/ircconform/irctest-go/internal/testharness/loader"
)

// ActionHandler executes one YAML step. Returning an AssertionError records
// an assertion failure; any other error is a fault.
type ActionHandler func(tc *Context, step *loader.Step) error

// Actions maps YAML action names to handlers.
type Actions struct {
	handlers map[string]ActionHandler
}

// NewActions creates an empty action table.
func NewActions() *Actions {
	return &Actions{handlers: make(map[string]ActionHandler)}
}

// Register registers an action handler.
func (a *Actions) Register(action string, handler ActionHandler) {
	a.handlers[action] = handler
}

// Lookup returns the handler for action.
func (a *Actions) Lookup(action string) (ActionHandler, bool) {
	h, ok := a.handlers[action]
	return h, ok
}

// Names returns the registered action names, sorted.
func (a *Actions) Names() []string {
	names := make([]string, 0, len(a.handlers))
	for n := range a.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first step whose action is unknown.
func (a *Actions) Validate(tc *loader.TestCase) error {
	for i := range tc.Steps {
		step := &tc.Steps[i]
		if _, ok := a.handlers[step.Action]; !ok {
			return &loader.LoadError{
				File:    tc.File,
				Line:    step.Line,
				Message: fmt.Sprintf("scenario %s: unknown action %q", tc.Name, step.Action),
			}
		}
	}
	return nil
}

// Scenario converts a loaded test case into a Scenario. Steps run in order
// and the first failing step ends the scenario.
func (a *Actions) Scenario(tc *loader.TestCase) (*Scenario, error) {
	if err := a.Validate(tc); err != nil {
		return nil, err
	}

	var timeout time.Duration
	if tc.Timeout != "" {
		d, err := time.ParseDuration(tc.Timeout)
		if err != nil {
			return nil, &loader.LoadError{File: tc.File, Message: "invalid timeout", Cause: err}
		}
		timeout = d
	}

	skip := ""
	if tc.Skip {
		skip = tc.SkipReason
		if skip == "" {
			skip = "skipped by scenario definition"
		}
	}

	source := tc.File
	if source == "" {
		source = "yaml"
	}

	steps := tc.Steps
	return &Scenario{
		Name:        tc.Name,
		Description: tc.Description,
		Tags:        tc.Tags,
		Timeout:     timeout,
		Skip:        skip,
		Source:      source,
		Run: func(c *Context) error {
			for i := range steps {
				step := steps[i]
				step.Params = InterpolateParams(step.Params, c)
				if err := a.handlers[step.Action](c, &step); err != nil {
					return fmt.Errorf("step %d (%s): %w", i+1, describeStep(&step), err)
				}
			}
			return nil
		},
	}, nil
}

func describeStep(step *loader.Step) string {
	if step.Description != "" {
		return step.Description
	}
	if step.Conn != "" {
		return step.Action + " " + step.Conn
	}
	return step.Action
}
