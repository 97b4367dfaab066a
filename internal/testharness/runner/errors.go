package runner

import "errors"

// Errors that prevent a run from starting. The CLI maps them to exit code 2.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoTarget      = errors.New("no target: set --target or --discover")
	ErrNoScenarios   = errors.New("no scenarios selected")
	ErrDiscovery     = errors.New("discovery failed")
)

// ErrNoConnection is returned by a step that names an unknown connection.
var ErrNoConnection = errors.New("no such connection")
