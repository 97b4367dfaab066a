package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ircconform/irctest-go/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// FilterOptions are the event filters shared by the log subcommands.
type FilterOptions struct {
	ConnID    string
	Label     string
	Scenario  string
	Direction string
	Category  string
}

func bindFilterFlags(cmd *cobra.Command, f *FilterOptions) {
	cmd.Flags().StringVar(&f.ConnID, "conn-id", "", "connection id prefix")
	cmd.Flags().StringVar(&f.Label, "label", "", "connection label (e.g. A, CTRL)")
	cmd.Flags().StringVar(&f.Scenario, "scenario", "", "scenario name")
	cmd.Flags().StringVar(&f.Direction, "direction", "", "direction (in|out|local)")
	cmd.Flags().StringVar(&f.Category, "category", "", "category (line|partial|state|error)")
}

// Filter converts the options to a log.Filter.
func (f *FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{ConnectionID: f.ConnID, Label: f.Label, Scenario: f.Scenario}
	if f.Direction != "" {
		d, ok := log.ParseDirection(f.Direction)
		if !ok {
			return filter, fmt.Errorf("invalid direction %q", f.Direction)
		}
		filter.Direction = &d
	}
	if f.Category != "" {
		c, ok := log.ParseCategory(f.Category)
		if !ok {
			return filter, fmt.Errorf("invalid category %q", f.Category)
		}
		filter.Category = &c
	}
	return filter, nil
}

// NewLogCommand creates the log command and its subcommands.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol capture files",
		Long: `Inspect capture files written with run --protocol-log.

Example:
  irctest log view --label A run.cbor
  irctest log stats run.cbor
  irctest log export --format csv -o run.csv run.cbor`,
	}
	cmd.AddCommand(newLogViewCommand())
	cmd.AddCommand(newLogStatsCommand())
	cmd.AddCommand(newLogExportCommand())
	return cmd
}

func newLogViewCommand() *cobra.Command {
	var f FilterOptions
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "View a capture file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.Filter()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter", err)
			}
			return RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	bindFilterFlags(cmd, &f)
	return cmd
}

func newLogStatsCommand() *cobra.Command {
	var f FilterOptions
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Show statistics about a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.Filter()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter", err)
			}
			return RunStats(args[0], filter, cmd.OutOrStdout())
		},
	}
	bindFilterFlags(cmd, &f)
	return cmd
}

func newLogExportCommand() *cobra.Command {
	var (
		f      FilterOptions
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a capture file to JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.Filter()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter", err)
			}
			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create output file", err)
				}
				defer file.Close()
				w = file
			}
			return RunExport(args[0], filter, format, w)
		},
	}
	bindFilterFlags(cmd, &f)
	cmd.Flags().StringVar(&format, "format", "jsonl", "export format (jsonl|csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// forEachEvent calls fn for every event in path that passes filter.
func forEachEvent(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	defer reader.Close()

	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

// RunView writes every matching event as one line.
func RunView(path string, filter log.Filter, w io.Writer) error {
	return forEachEvent(path, filter, func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
}

// formatEvent writes: timestamp [conn:id] [label] DIR CATEGORY text.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timestampFormat)
	fmt.Fprintf(w, "%s [conn:%s] [%s] %-5s %-7s", ts, shortenConnID(event.ConnectionID), event.Label,
		event.Direction, event.Category)
	switch event.Category {
	case log.CategoryError:
		fmt.Fprintf(w, " %s", event.Error)
	case log.CategoryPartial:
		fmt.Fprintf(w, " %q", event.Line)
	default:
		if event.Line != "" {
			fmt.Fprintf(w, " %s", event.Line)
		}
	}
	if event.Category == log.CategoryState && event.RemoteAddr != "" {
		fmt.Fprintf(w, " (%s)", event.RemoteAddr)
	}
	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	Label     string
	Scenario  string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	LinesIn   int
	LinesOut  int
	BytesOut  int
}

// CollectStats aggregates the matching events of path.
func CollectStats(path string, filter log.Filter) (*Stats, error) {
	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	err := forEachEvent(path, filter, func(event log.Event) error {
		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				Label:     event.Label,
				Scenario:  event.Scenario,
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Category == log.CategoryLine {
			switch event.Direction {
			case log.DirectionIn:
				conn.LinesIn++
			case log.DirectionOut:
				conn.LinesOut++
			}
		}
		if event.Direction == log.DirectionOut {
			conn.BytesOut += event.Size
		}
		if event.Category == log.CategoryError {
			stats.Errors++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := CollectStats(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Protocol Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryLine, log.CategoryPartial, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionLocal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"CONN", "LABEL", "SCENARIO", "EVENTS", "IN", "OUT", "BYTES OUT", "DURATION"})
		for _, c := range conns {
			t.AppendRow(table.Row{
				shortenConnID(c.id), c.stats.Label, c.stats.Scenario, c.stats.Events,
				c.stats.LinesIn, c.stats.LinesOut, c.stats.BytesOut,
				c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond),
			})
		}
		t.Render()
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

// exportEvent is the JSONL shape of an event, with readable enums.
type exportEvent struct {
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connection_id"`
	Label        string `json:"label,omitempty"`
	Scenario     string `json:"scenario,omitempty"`
	Direction    string `json:"direction"`
	Category     string `json:"category"`
	RemoteAddr   string `json:"remote_addr,omitempty"`
	Line         string `json:"line,omitempty"`
	Size         int    `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
}

func toExport(event log.Event) exportEvent {
	return exportEvent{
		Timestamp:    event.Timestamp.UTC().Format(timestampFormat),
		ConnectionID: event.ConnectionID,
		Label:        event.Label,
		Scenario:     event.Scenario,
		Direction:    event.Direction.String(),
		Category:     event.Category.String(),
		RemoteAddr:   event.RemoteAddr,
		Line:         event.Line,
		Size:         event.Size,
		Error:        event.Error,
	}
}

// RunExport exports the matching events of path to w in format.
func RunExport(path string, filter log.Filter, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		encoder := json.NewEncoder(w)
		return forEachEvent(path, filter, func(event log.Event) error {
			if err := encoder.Encode(toExport(event)); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		return exportCSV(path, filter, w)
	default:
		return WrapExitError(ExitCommandError, "unknown format", fmt.Errorf("%s (supported: jsonl, csv)", format))
	}
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "label", "scenario", "direction", "category", "line", "size", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	err := forEachEvent(path, filter, func(event log.Event) error {
		e := toExport(event)
		row := []string{
			e.Timestamp, e.ConnectionID, e.Label, e.Scenario, e.Direction, e.Category,
			e.Line, strconv.Itoa(e.Size), e.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
