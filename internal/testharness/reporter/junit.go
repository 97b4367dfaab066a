package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/ircconform/irctest-go/internal/testharness/engine"
)

// JUnitReporter outputs JUnit XML format for CI integration.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// StartTest does nothing; output is written by ReportSuite.
func (r *JUnitReporter) StartTest(*engine.Scenario) {}

// ReportTest does nothing; output is written by ReportSuite.
func (r *JUnitReporter) ReportTest(*engine.Result) {}

// ReportSuite reports suite results in JUnit XML format. Assertion failures
// become <failure>, faults become <error>.
func (r *JUnitReporter) ReportSuite(result *engine.SuiteResult) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")

	fmt.Fprintf(&b, `<testsuite name="%s" tests="%d" failures="%d" errors="%d" skipped="%d" time="%.3f">`,
		escapeXML(result.SuiteName),
		len(result.Results),
		result.FailCount-result.FaultCount,
		result.FaultCount,
		result.SkipCount,
		result.Duration.Seconds())
	b.WriteString("\n")

	for _, tr := range result.Results {
		classname := "irctest"
		if tr.Scenario != nil && tr.Scenario.Source != "" {
			classname = tr.Scenario.Source
		}
		fmt.Fprintf(&b, `  <testcase name="%s" classname="%s" time="%.3f">`,
			escapeXML(tr.Name),
			escapeXML(classname),
			tr.Duration.Seconds())
		b.WriteString("\n")

		switch tr.Outcome {
		case engine.OutcomeSkipped:
			fmt.Fprintf(&b, `    <skipped message="%s"/>`, escapeXML(tr.Detail))
			b.WriteString("\n")
		case engine.OutcomeAssertion, engine.OutcomeFault:
			tag := "failure"
			if tr.Outcome == engine.OutcomeFault {
				tag = "error"
			}
			fmt.Fprintf(&b, `    <%s message="%s">`, tag, escapeXML(firstLine(tr.Detail)))
			b.WriteString("\n")
			b.WriteString("      <![CDATA[")
			b.WriteString(cdata(tr.Detail))
			b.WriteString("\n")
			for _, label := range tr.Labels {
				fmt.Fprintf(&b, "--- %s\n", label)
				for _, line := range tr.Transcripts[label] {
					b.WriteString(cdata(line))
					b.WriteString("\n")
				}
			}
			b.WriteString("]]>\n")
			fmt.Fprintf(&b, "    </%s>\n", tag)
		}

		b.WriteString("  </testcase>\n")
	}

	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// cdata keeps a CDATA section from being closed early.
func cdata(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
