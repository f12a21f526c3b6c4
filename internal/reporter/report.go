// Package reporter builds the stable JSON report payload spec.md §6
// describes from a run's []model.RequestReport, and renders a
// human-readable summary table for the CLI. Supersedes the teacher's
// internal/reporter.Reporter (Timestamp/TotalTests/PassedTests JSON dump)
// with the field names and nested property-result shape the spec commits
// to as a stable wire contract.
package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"apiconform/internal/model"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// PropertyResult is one property's outcome in the report payload.
type PropertyResult struct {
	PropertyName        string             `json:"propertyName"`
	PropertyDescription string             `json:"propertyDescription"`
	RFCReference        string             `json:"rfcReference"`
	Passed              bool               `json:"passed"`
	FailureReason       string             `json:"failureReason,omitempty"`
	Details             string             `json:"details,omitempty"`
	ExecutionTimeMs     float64            `json:"executionTimeMs"`
	Metrics             map[string]float64 `json:"metrics,omitempty"`
}

// Result is one request/response probe's report payload.
type Result struct {
	RequestMethod      string           `json:"requestMethod"`
	RequestPath        string           `json:"requestPath"`
	ResponseStatusCode int              `json:"responseStatusCode"`
	OverallPassed      bool             `json:"overallPassed"`
	TotalProperties    int              `json:"totalProperties"`
	PassedProperties   int              `json:"passedProperties"`
	FailedProperties   int              `json:"failedProperties"`
	ExecutionTimeMs    float64          `json:"executionTimeMs"`
	PropertyResults    []PropertyResult `json:"propertyResults"`
}

// Summary is the run-level rollup.
type Summary struct {
	OverallPassRate       float64 `json:"overallPassRate"`
	TotalTests            int     `json:"totalTests"`
	PassedTests           int     `json:"passedTests"`
	FailedTests           int     `json:"failedTests"`
	TotalProperties       int     `json:"totalProperties"`
	PassedProperties      int     `json:"passedProperties"`
	FailedProperties      int     `json:"failedProperties"`
	UniqueEndpoints       int     `json:"uniqueEndpoints"`
	PropertyPassRate      float64 `json:"propertyPassRate"`
	AverageResponseTimeMs float64 `json:"averageResponseTimeMs"`
}

// Report is the full JSON payload spec.md §6 commits to.
type Report struct {
	Title       string   `json:"title"`
	GeneratedAt string   `json:"generatedAt"`
	Summary     Summary  `json:"summary"`
	Results     []Result `json:"results"`
}

// Build aggregates a run's reports into the stable Report payload. now is
// passed in rather than taken internally so callers stay deterministic in
// tests (Date.now()-style ambient clocks don't compose with golden files).
func Build(title string, now time.Time, reports []model.RequestReport) Report {
	results := make([]Result, 0, len(reports))
	endpoints := map[string]struct{}{}

	var totalProps, passedProps int
	var passedTests int
	var totalDurationMs float64

	for _, r := range reports {
		passed, failed := r.Counts()
		totalProps += passed + failed
		passedProps += passed

		propResults := make([]PropertyResult, 0, len(r.PropertyOutcomes))
		for _, o := range r.PropertyOutcomes {
			propResults = append(propResults, PropertyResult{
				PropertyName:        o.Name,
				PropertyDescription: o.Description,
				RFCReference:        o.RFCReference,
				Passed:              o.Result.Passed,
				FailureReason:       o.Result.FailureReason,
				Details:             o.Result.Details,
				ExecutionTimeMs:     millis(o.ExecutionTime),
				Metrics:             o.Result.Metrics,
			})
		}

		overallPassed := r.OverallPassed()
		if overallPassed {
			passedTests++
		}
		endpoints[r.RequestMethod+" "+r.RequestPath] = struct{}{}
		totalDurationMs += millis(r.ExecutionTime)

		results = append(results, Result{
			RequestMethod:      r.RequestMethod,
			RequestPath:        r.RequestPath,
			ResponseStatusCode: r.ResponseStatusCode,
			OverallPassed:      overallPassed,
			TotalProperties:    passed + failed,
			PassedProperties:   passed,
			FailedProperties:   failed,
			ExecutionTimeMs:    millis(r.ExecutionTime),
			PropertyResults:    propResults,
		})
	}

	total := len(reports)
	summary := Summary{
		TotalTests:       total,
		PassedTests:      passedTests,
		FailedTests:      total - passedTests,
		TotalProperties:  totalProps,
		PassedProperties: passedProps,
		FailedProperties: totalProps - passedProps,
		UniqueEndpoints:  len(endpoints),
	}
	if total > 0 {
		summary.OverallPassRate = float64(passedTests) / float64(total)
		summary.AverageResponseTimeMs = totalDurationMs / float64(total)
	}
	if totalProps > 0 {
		summary.PropertyPassRate = float64(passedProps) / float64(totalProps)
	}

	return Report{
		Title:       title,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Summary:     summary,
		Results:     results,
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// WriteFile marshals report as indented JSON (via json-iterator's
// standard-library-compatible codec, SPEC_FULL §3.6) and writes it to path,
// creating parent directories as needed.
func WriteFile(path string, report Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("apiconform/reporter: mkdir %s: %w", dir, err)
		}
	}
	data, err := jsonAPI.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("apiconform/reporter: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
