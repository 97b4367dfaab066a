// Package log provides structured protocol capture for the conformance
// harness.
//
// It is separate from operational logging (slog). Every line a harness
// connection sends or receives, every fragmented write and every connection
// lifecycle change becomes an Event, so a failing run can be replayed and
// inspected after the fact.
//
// # Basic Usage
//
// The runner is configured with a Logger implementation:
//
//	// Development: print events through slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Persist a capture file for later analysis
//	cfg.ProtocolLogger, _ = log.NewFileLogger("run.ilog")
//
//	// Both
//	cfg.ProtocolLogger = log.Tee(console, file)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys.
// FileLogger appends, so one file may hold several sessions. "irctest log"
// views, filters and exports them.
package log
