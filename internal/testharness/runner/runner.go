// Package runner wires configuration, scenario registry, reporters, protocol
// capture and discovery into a conformance run against one IRC server.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/internal/testharness/loader"
	"github.com/ircconform/irctest-go/internal/testharness/reporter"
	"github.com/ircconform/irctest-go/internal/testharness/scenarios"
	"github.com/ircconform/irctest-go/pkg/discovery"
	"github.com/ircconform/irctest-go/pkg/log"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// Runner executes scenarios against the server under test.
type Runner struct {
	config       *Config
	engine       *engine.Engine
	engineConfig *engine.EngineConfig
	reporter     reporter.Reporter
	actions      *engine.Actions
	logger       *slog.Logger

	// fileLog is the capture file, closed by Close.
	fileLog *log.FileLogger

	// warnings collects non-fatal problems, such as unknown --only names.
	warnings []string
}

// New creates a runner. It opens the protocol capture file when one is
// configured.
func New(config *Config) (*Runner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engineConfig := engine.DefaultConfig()
	engineConfig.DefaultTimeout = config.Timeout
	engineConfig.StopOnFirstFailure = config.StopOnFirstFailure
	engineConfig.Logger = logger
	engineConfig.Settings = engine.Settings{
		Password:       config.Password,
		ConnectTimeout: config.ConnectTimeout,
		ExpectTimeout:  config.ExpectTimeout,
		PollInterval:   config.PollInterval,
		WriteTimeout:   config.WriteTimeout,
		Strict:         config.Strict,
	}

	r := &Runner{
		config:       config,
		engine:       engine.NewWithConfig(engineConfig),
		engineConfig: engineConfig,
		actions:      NewActions(),
		logger:       logger,
	}

	// Create reporter
	switch config.OutputFormat {
	case FormatJSON:
		r.reporter = reporter.NewJSONReporter(config.Output, true)
	case FormatJUnit:
		r.reporter = reporter.NewJUnitReporter(config.Output)
	default:
		text := reporter.NewTextReporter(config.Output, reporter.TextOptions{
			Verbose: config.Verbose,
			Color:   config.Color,
		})
		if config.Verbose {
			engineConfig.Settings.Echo = text.Transcript
		}
		r.reporter = text
	}
	reporter.Hooks(engineConfig, r.reporter)

	if err := r.setupProtocolLog(); err != nil {
		return nil, err
	}
	return r, nil
}

// setupProtocolLog builds the capture chain: the CBOR file, plus debug
// output to the operational logger when requested.
func (r *Runner) setupProtocolLog() error {
	var loggers []log.Logger
	if r.config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(r.config.ProtocolLog)
		if err != nil {
			return fmt.Errorf("failed to open protocol log: %w", err)
		}
		r.fileLog = fl
		loggers = append(loggers, fl)
	}
	if r.config.Debug {
		loggers = append(loggers, log.NewSlogAdapter(r.logger))
	}

	r.engineConfig.Settings.ProtocolLogger = log.Tee(loggers...)
	return nil
}

// Close releases the capture file.
func (r *Runner) Close() error {
	if r.fileLog != nil {
		return r.fileLog.Close()
	}
	return nil
}

// Warnings returns the non-fatal problems found so far.
func (r *Runner) Warnings() []string {
	return r.warnings
}

func (r *Runner) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.logger.Warn(msg)
}

// Registry assembles the built-in battery and the YAML scenarios of TestDir.
func (r *Runner) Registry() (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if !r.config.NoBuiltin {
		if err := scenarios.Register(reg); err != nil {
			return nil, err
		}
	}
	if r.config.TestDir == "" {
		return reg, nil
	}

	cases, err := loader.LoadDirectoryRecursive(r.config.TestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	for _, tc := range cases {
		s, err := r.actions.Scenario(tc)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("%s: %w", tc.File, err)
		}
	}
	return reg, nil
}

// Selection returns the configured scenario selection.
func (r *Runner) Selection() engine.Selection {
	return engine.Selection{
		Names:       r.config.Only,
		Pattern:     r.config.Pattern,
		Tags:        splitCSV(r.config.Tags),
		ExcludeTags: splitCSV(r.config.ExcludeTags),
	}
}

// Scenarios returns the selected scenarios in run order. Unknown names are
// reported as warnings; an empty selection is ErrNoScenarios.
func (r *Runner) Scenarios() ([]*engine.Scenario, error) {
	reg, err := r.Registry()
	if err != nil {
		return nil, err
	}
	sel := r.Selection()
	for _, name := range reg.Unknown(sel) {
		r.warnf("unknown scenario %q", name)
	}
	selected := reg.Select(sel)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w (only=%q, pattern=%q, tags=%q, exclude-tags=%q)",
			ErrNoScenarios, strings.Join(r.config.Only, ","), r.config.Pattern, r.config.Tags, r.config.ExcludeTags)
	}
	return selected, nil
}

// Run resolves the target, runs the selected scenarios and reports the
// suite. An error means nothing ran.
func (r *Runner) Run(ctx context.Context) (*engine.SuiteResult, error) {
	selected, err := r.Scenarios()
	if err != nil {
		return nil, err
	}

	target, useTLS, err := r.resolveTarget(ctx)
	if err != nil {
		return nil, err
	}
	r.engineConfig.Settings.Address = target
	if useTLS {
		conf, err := transport.NewClientTLSConfig(transport.TLSOptions{
			ServerName:         r.config.ServerName,
			InsecureSkipVerify: r.config.Insecure,
			CAFile:             r.config.CAFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		r.engineConfig.Settings.TLSConfig = conf
	}

	r.logger.Info("starting conformance run", "target", target, "tls", useTLS, "scenarios", len(selected))
	result := r.engine.RunSuite(ctx, selected)
	result.SuiteName = fmt.Sprintf("IRC Conformance Tests (%s)", target)
	result.Target = target

	// Report summary only; individual results were streamed via Hooks.
	r.reporter.ReportSuite(result)
	return result, nil
}

// resolveTarget returns host:port and whether to use TLS, browsing mDNS
// when discovery is enabled.
func (r *Runner) resolveTarget(ctx context.Context) (string, bool, error) {
	if !r.config.Discover {
		if r.config.Target == "" {
			return "", false, ErrNoTarget
		}
		return normalizeTarget(r.config.Target), r.config.TLS, nil
	}

	browser := r.config.Browser
	if browser == nil {
		cfg := discovery.DefaultBrowserConfig()
		cfg.BrowseTimeout = r.config.DiscoverTimeout
		b := discovery.NewMDNSBrowser(cfg)
		defer b.Stop()
		browser = b
	}
	svc, err := browser.Find(ctx, r.config.DiscoverInstance)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	r.logger.Info("discovered server", "instance", svc.InstanceName, "address", svc.Address(),
		"network", svc.Network, "tls", svc.TLS)
	return svc.Address(), r.config.TLS || svc.TLS, nil
}

// normalizeTarget adds DefaultPort to a bare host.
func normalizeTarget(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(strings.Trim(target, "[]"), DefaultPort)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExitCode maps a run outcome to the process exit status: 0 when every
// scenario passed or was skipped, 1 when any failed, 2 when the run could
// not start.
func ExitCode(result *engine.SuiteResult, err error) int {
	if err != nil {
		return 2
	}
	if result == nil || result.FailCount > 0 {
		return 1
	}
	return 0
}
