package reporter

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// SummaryTable renders report's run-level summary as a two-column table,
// in the style of anasdox-workline's CLI output tables.
func SummaryTable(report Report) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"total tests", report.Summary.TotalTests},
		{"passed tests", report.Summary.PassedTests},
		{"failed tests", report.Summary.FailedTests},
		{"overall pass rate", fmt.Sprintf("%.1f%%", report.Summary.OverallPassRate*100)},
		{"unique endpoints", report.Summary.UniqueEndpoints},
		{"total properties", report.Summary.TotalProperties},
		{"property pass rate", fmt.Sprintf("%.1f%%", report.Summary.PropertyPassRate*100)},
		{"avg response time (ms)", fmt.Sprintf("%.2f", report.Summary.AverageResponseTimeMs)},
	})
	return t.Render()
}

// ResultsTable renders one row per probed request, with a compact list of
// failing property names for quick scanning.
func ResultsTable(report Report) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"method", "path", "status", "passed", "failing properties"})
	for _, r := range report.Results {
		t.AppendRow(table.Row{r.RequestMethod, r.RequestPath, r.ResponseStatusCode, r.OverallPassed, strings.Join(failingNames(r), ", ")})
	}
	return t.Render()
}

func failingNames(r Result) []string {
	var out []string
	for _, p := range r.PropertyResults {
		if !p.Passed {
			out = append(out, p.PropertyName)
		}
	}
	return out
}
