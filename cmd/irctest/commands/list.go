package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
	"github.com/ircconform/irctest-go/internal/testharness/runner"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Format string

	config *runner.Config
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts, config: runner.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios",
		Long: `List the scenarios a run with the same selection flags would execute,
in run order.

Example:
  irctest list
  irctest list --tags strict
  irctest list --tests ./scenarios --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(cmd, opts)
		},
	}

	bindSelectionFlags(cmd.Flags(), opts.config)
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table|json|names)")

	return cmd
}

// scenarioInfo is the JSON shape of a listed scenario.
type scenarioInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source"`
	Skip        string   `json:"skip,omitempty"`
}

func listScenarios(cmd *cobra.Command, opts *ListOptions) error {
	cfg := opts.config
	cfg.Output = io.Discard
	cfg.Logger = opts.newLogger(cmd.ErrOrStderr())

	r, err := runner.New(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	defer r.Close()

	list, err := r.Scenarios()
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot list scenarios", err)
	}

	w := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		return writeScenarioJSON(w, list)
	case "names":
		for _, s := range list {
			fmt.Fprintln(w, s.Name)
		}
		return nil
	case "table":
		writeScenarioTable(w, list)
		return nil
	default:
		return WrapExitError(ExitCommandError, "invalid format", fmt.Errorf("%q: must be table, json or names", opts.Format))
	}
}

func writeScenarioJSON(w io.Writer, list []*engine.Scenario) error {
	infos := make([]scenarioInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, scenarioInfo{
			Name:        s.Name,
			Description: s.Description,
			Tags:        s.Tags,
			Source:      s.Source,
			Skip:        s.Skip,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(infos)
}

func writeScenarioTable(w io.Writer, list []*engine.Scenario) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "NAME", "TAGS", "SOURCE"})
	for i, s := range list {
		name := s.Name
		if s.Skip != "" {
			name += " " + text.FgYellow.Sprint("(skip)")
		}
		t.AppendRow(table.Row{i + 1, name, strings.Join(s.Tags, ","), s.Source})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d scenario(s)", len(list)), "", ""})
	t.Render()
}
