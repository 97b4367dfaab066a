package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircconform/irctest-go/pkg/log"
)

var testEpoch = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func sampleEvents() []log.Event {
	return []log.Event{
		{Timestamp: testEpoch, ConnectionID: "abc12345-0000", Label: "A", Scenario: "PING -> PONG",
			Direction: log.DirectionLocal, Category: log.CategoryState, Line: log.StateConnected, RemoteAddr: "127.0.0.1:6667"},
		{Timestamp: testEpoch.Add(time.Millisecond), ConnectionID: "abc12345-0000", Label: "A", Scenario: "PING -> PONG",
			Direction: log.DirectionOut, Category: log.CategoryLine, Line: "PING tok", Size: 10},
		{Timestamp: testEpoch.Add(2 * time.Millisecond), ConnectionID: "abc12345-0000", Label: "A", Scenario: "PING -> PONG",
			Direction: log.DirectionIn, Category: log.CategoryLine, Line: ":server PONG server :tok", Size: 26},
		{Timestamp: testEpoch.Add(3 * time.Millisecond), ConnectionID: "def67890-0000", Label: "B", Scenario: "Robustness: partial command assembly",
			Direction: log.DirectionOut, Category: log.CategoryPartial, Line: "PRIV", Size: 4},
		{Timestamp: testEpoch.Add(time.Second), ConnectionID: "def67890-0000", Label: "B", Scenario: "Robustness: partial command assembly",
			Direction: log.DirectionLocal, Category: log.CategoryError, Error: "connection reset by peer"},
	}
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var out bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "2026-01-28T10:15:32.123456Z [conn:abc12345] [A] LOCAL STATE   connected (127.0.0.1:6667)", lines[0])
	assert.Contains(t, lines[1], "[A] OUT   LINE    PING tok")
	assert.Contains(t, lines[3], `PARTIAL "PRIV"`)
	assert.Contains(t, lines[4], "ERROR   connection reset by peer")
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"label", FilterOptions{Label: "B"}, 2},
		{"conn id prefix", FilterOptions{ConnID: "abc"}, 3},
		{"direction", FilterOptions{Direction: "out"}, 2},
		{"category", FilterOptions{Category: "LINE"}, 2},
		{"scenario", FilterOptions{Scenario: "PING -> PONG", Direction: "in"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tt.opts.Filter()
			require.NoError(t, err)
			var out bytes.Buffer
			require.NoError(t, RunView(path, filter, &out))
			assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), tt.want)
		})
	}
}

func TestFilterOptionsInvalid(t *testing.T) {
	_, err := (&FilterOptions{Direction: "sideways"}).Filter()
	assert.ErrorContains(t, err, "invalid direction")

	_, err = (&FilterOptions{Category: "message"}).Filter()
	assert.ErrorContains(t, err, "invalid category")
}

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := CollectStats(path, log.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalEvents)
	assert.Equal(t, 2, stats.EventsByCategory[log.CategoryLine])
	assert.Equal(t, 2, stats.EventsByDirection[log.DirectionLocal])
	assert.Equal(t, 1, stats.Errors)
	assert.True(t, testEpoch.Equal(stats.TimeRange.Start))
	assert.True(t, testEpoch.Add(time.Second).Equal(stats.TimeRange.End))

	require.Len(t, stats.Connections, 2)
	a := stats.Connections["abc12345-0000"]
	assert.Equal(t, "A", a.Label)
	assert.Equal(t, 1, a.LinesIn)
	assert.Equal(t, 1, a.LinesOut)
	assert.Equal(t, 10, a.BytesOut)
	assert.Equal(t, 4, stats.Connections["def67890-0000"].BytesOut)
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var out bytes.Buffer
	require.NoError(t, RunStats(path, log.Filter{}, &out))
	s := out.String()
	assert.Contains(t, s, "Total Events: 5")
	assert.Contains(t, s, "Connections: 2")
	assert.Contains(t, s, "Robustness: partial command assembly")
	assert.Contains(t, s, "Errors: 1")
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var out bytes.Buffer
	require.NoError(t, RunExport(path, log.Filter{}, "jsonl", &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)

	var first exportEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &first))
	assert.Equal(t, "2026-01-28T10:15:32.124456Z", first.Timestamp)
	assert.Equal(t, "OUT", first.Direction)
	assert.Equal(t, "LINE", first.Category)
	assert.Equal(t, "PING tok", first.Line)
	assert.Equal(t, 10, first.Size)
}

func TestRunExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var out bytes.Buffer
	require.NoError(t, RunExport(path, log.Filter{Label: "B"}, "csv", &out))

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "timestamp", records[0][0])
	assert.Equal(t, "PRIV", records[1][6])
	assert.Equal(t, "connection reset by peer", records[2][8])
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	err := RunExport(path, log.Filter{}, "xml", &bytes.Buffer{})
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogCommands(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	out, err := execute(t, "log", "view", "--direction", "in", path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "PONG")

	outPath := filepath.Join(t.TempDir(), "out.csv")
	_, err = execute(t, "log", "export", "--format", "csv", "-o", outPath, path)
	require.NoError(t, err)
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))

	_, err = execute(t, "log", "view", "/nonexistent.cbor")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "log", "stats", "--category", "bogus", path)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
