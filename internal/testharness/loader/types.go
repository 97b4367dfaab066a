// Package loader provides YAML scenario loading for the test harness.
package loader

import (
	"strconv"
	"time"
)

// TestCase represents a single scenario loaded from YAML.
type TestCase struct {
	// ID is an optional short identifier (e.g., "TC-REG-001").
	ID string `yaml:"id,omitempty"`

	// Name is the scenario name used for selection. It must be unique.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Tags for categorizing scenarios.
	Tags []string `yaml:"tags,omitempty"`

	// Timeout is the maximum duration for the scenario (e.g., "30s").
	Timeout string `yaml:"timeout,omitempty"`

	// Skip disables the scenario.
	Skip bool `yaml:"skip,omitempty"`

	// SkipReason explains why the scenario is skipped.
	SkipReason string `yaml:"skip_reason,omitempty"`

	// Steps are the actions to execute in order.
	Steps []Step `yaml:"steps"`

	// File is the path the case was loaded from.
	File string `yaml:"-"`
}

// Step represents a single action in a scenario.
type Step struct {
	// Action is the action to perform (e.g., "connect", "send", "expect_numeric").
	Action string `yaml:"action"`

	// Conn is the label of the connection the action applies to.
	Conn string `yaml:"conn,omitempty"`

	// Params are parameters for the action.
	Params map[string]interface{} `yaml:"params,omitempty"`

	// Timeout overrides the default expectation timeout for this step.
	Timeout string `yaml:"timeout,omitempty"`

	// Description explains what this step does.
	Description string `yaml:"description,omitempty"`

	// Line is the line of the step in its source file (0 if unknown).
	Line int `yaml:"-"`
}

// TimeoutOr parses Timeout, returning def when it is empty.
func (s *Step) TimeoutOr(def time.Duration) (time.Duration, error) {
	if s.Timeout == "" {
		return def, nil
	}
	return time.ParseDuration(s.Timeout)
}

// String returns a param as text. Numbers are formatted; missing params
// return "".
func (s *Step) String(key string) string {
	switch v := s.Params[key].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Strings returns a list param. A scalar is returned as a one-element list.
func (s *Step) Strings(key string) []string {
	switch v := s.Params[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch iv := item.(type) {
			case string:
				out = append(out, iv)
			case int:
				out = append(out, strconv.Itoa(iv))
			}
		}
		return out
	case nil:
		return nil
	}
	if str := s.String(key); str != "" {
		return []string{str}
	}
	return nil
}

// Int returns an integer param, or def if missing.
func (s *Step) Int(key string, def int) int {
	switch v := s.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns a boolean param. The strings "true" and "yes" count as true.
func (s *Step) Bool(key string) bool {
	switch v := s.Params[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	}
	return false
}

// Duration returns a duration param ("150ms"), or def if missing.
func (s *Step) Duration(key string, def time.Duration) time.Duration {
	switch v := s.Params[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Millisecond
	}
	return def
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Line > 0 {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + msg
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
