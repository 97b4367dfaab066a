package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

// JSONReporter outputs a JSON document once the suite completes.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONSuiteResult is the JSON representation of suite results.
type JSONSuiteResult struct {
	SuiteName string           `json:"suite_name"`
	Target    string           `json:"target,omitempty"`
	Duration  string           `json:"duration"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Errors    int              `json:"errors"`
	Skipped   int              `json:"skipped"`
	PassRate  float64          `json:"pass_rate"`
	Tests     []JSONTestResult `json:"tests"`
}

// JSONTestResult is the JSON representation of a scenario result.
type JSONTestResult struct {
	Name        string              `json:"name"`
	Source      string              `json:"source,omitempty"`
	Status      string              `json:"status"`
	Duration    string              `json:"duration"`
	Detail      string              `json:"detail,omitempty"`
	Transcripts map[string][]string `json:"transcripts,omitempty"`
}

// StartTest does nothing; output is written by ReportSuite.
func (r *JSONReporter) StartTest(*engine.Scenario) {}

// ReportTest does nothing; output is written by ReportSuite.
func (r *JSONReporter) ReportTest(*engine.Result) {}

// ReportSuite writes the suite as one JSON document.
func (r *JSONReporter) ReportSuite(result *engine.SuiteResult) {
	var passRate float64
	if total := result.Total(); total > 0 {
		passRate = float64(result.PassCount) / float64(total) * 100
	}

	jr := JSONSuiteResult{
		SuiteName: result.SuiteName,
		Target:    result.Target,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Total:     len(result.Results),
		Passed:    result.PassCount,
		Failed:    result.FailCount - result.FaultCount,
		Errors:    result.FaultCount,
		Skipped:   result.SkipCount,
		PassRate:  passRate,
		Tests:     make([]JSONTestResult, 0, len(result.Results)),
	}

	for _, tr := range result.Results {
		jr.Tests = append(jr.Tests, testToJSON(tr))
	}

	r.writeJSON(jr)
}

func testToJSON(result *engine.Result) JSONTestResult {
	jr := JSONTestResult{
		Name:     result.Name,
		Status:   statusOf(result.Outcome),
		Duration: result.Duration.Round(time.Millisecond).String(),
		Detail:   result.Detail,
	}
	if result.Scenario != nil {
		jr.Source = result.Scenario.Source
	}
	// Transcripts are only worth their size for failures.
	if result.Failed() {
		jr.Transcripts = result.Transcripts
	}
	return jr
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`, err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}
