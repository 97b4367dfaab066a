package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ircconform/irctest-go/internal/testharness/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFile string

	config *runner.Config
	target targetFlags
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, config: runner.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "run [pattern]",
		Short: "Run conformance scenarios against a server",
		Long: `Run the built-in battery, plus any YAML scenarios from --tests, against
the server under test. Scenarios run one at a time, each with fresh
connections. An optional positional pattern is a glob matched against
scenario names.

Exit status is 0 when every scenario passed, 1 when any failed and 2 when
the run could not start.

Example:
  irctest run --target 127.0.0.1:6667
  irctest run --config irctest.yaml --strict "NICK*"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConformance(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "YAML config file; explicit flags win over it")
	bindRunFlags(cmd.Flags(), opts.config, &opts.target)

	return cmd
}

// resolveConfig merges the config file, the flags and the positional
// pattern.
func (o *RunOptions) resolveConfig(cmd *cobra.Command, args []string) (*runner.Config, error) {
	cfg := o.config
	tf := o.target
	if o.ConfigFile != "" {
		fileCfg, err := runner.LoadConfigFile(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		fs := pflag.NewFlagSet("file", pflag.ContinueOnError)
		tf = targetFlags{}
		bindRunFlags(fs, fileCfg, &tf)
		if err := overlay(fs, cmd.Flags()); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	tf.apply(cfg)

	if len(args) > 0 {
		if cfg.Pattern != "" {
			cfg.Pattern += ","
		}
		cfg.Pattern += args[0]
	}
	if !cmd.Flags().Changed("color") && !cfg.Color {
		cfg.Color = !color.NoColor
	}
	cfg.Debug = o.Debug
	cfg.Output = cmd.OutOrStdout()
	return cfg, nil
}

func runConformance(cmd *cobra.Command, opts *RunOptions, args []string) error {
	cfg, err := opts.resolveConfig(cmd, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg.Logger = opts.newLogger(cmd.ErrOrStderr())

	if cfg.OutputFormat == runner.FormatText {
		printBanner(cmd.OutOrStdout(), cfg)
	}

	r, err := runner.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up run", err)
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := r.Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "run did not start", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return WrapExitError(ExitFailure, "interrupted", ctx.Err())
	}
	if code := runner.ExitCode(result, nil); code != ExitSuccess {
		return &ExitError{Code: code, Message: fmt.Sprintf("%d scenario(s) failed", result.FailCount)}
	}
	return nil
}

func printBanner(w io.Writer, cfg *runner.Config) {
	fmt.Fprintln(w, "IRC Conformance Test Runner")
	if cfg.Discover {
		fmt.Fprintln(w, "Target: discovered via mDNS")
	} else {
		fmt.Fprintf(w, "Target: %s\n", cfg.Target)
	}
	if cfg.TLS {
		fmt.Fprintln(w, "Transport: TLS")
	}
	if cfg.Strict {
		fmt.Fprintln(w, "Wording: strict")
	}
	if sel := selectionSummary(cfg); sel != "" {
		fmt.Fprintf(w, "Selection: %s\n", sel)
	}
	if cfg.ProtocolLog != "" {
		fmt.Fprintf(w, "Protocol logging to: %s\n", cfg.ProtocolLog)
	}
	fmt.Fprintln(w)
}

func selectionSummary(cfg *runner.Config) string {
	var parts []string
	if len(cfg.Only) > 0 {
		parts = append(parts, "only="+strings.Join(cfg.Only, "|"))
	}
	if cfg.Pattern != "" {
		parts = append(parts, "pattern="+cfg.Pattern)
	}
	if cfg.Tags != "" {
		parts = append(parts, "tags="+cfg.Tags)
	}
	if cfg.ExcludeTags != "" {
		parts = append(parts, "exclude-tags="+cfg.ExcludeTags)
	}
	return strings.Join(parts, " ")
}
