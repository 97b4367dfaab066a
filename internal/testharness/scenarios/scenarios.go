// Package scenarios contains the built-in conformance battery.
//
// Every scenario is plain data against the engine: a name, tags and a Run
// function built from Context helpers. New scenarios are added here or as
// YAML files without touching the engine.
package scenarios

import "github.com/ircconform/irctest-go/internal/testharness/engine"

// SourceBuiltin is the Scenario.Source of every built-in scenario.
const SourceBuiltin = "builtin"

// All returns the built-in scenarios in execution order: the scenario
// battery first, then the strict reply checks.
func All() []*engine.Scenario {
	var out []*engine.Scenario
	out = append(out, registrationScenarios()...)
	out = append(out, channelScenarios()...)
	out = append(out, modeScenarios()...)
	out = append(out, visibilityScenarios()...)
	out = append(out, robustnessScenarios()...)
	out = append(out, strictScenarios()...)
	for _, s := range out {
		s.Source = SourceBuiltin
	}
	return out
}

// Register adds the built-in scenarios to reg.
func Register(reg *engine.Registry) error {
	return reg.Register(All()...)
}
