package engine

import (
	"fmt"
	"io"
	"time"
)

// Failure describes one failed action for the summary.
type Failure struct {
	// ResourceID is the identity of the failed resource.
	ResourceID ResourceID `json:"resource_id"`

	// Verb is the operation that failed.
	Verb Verb `json:"verb"`

	// Detail is the failure reason.
	Detail string `json:"detail"`
}

// Report is the pure aggregation of a run's execution records: counts
// by outcome, the failure list, and the total duration. Building a
// report has no side effects.
type Report struct {
	// Total is the number of planned actions.
	Total int `json:"total"`

	// Succeeded counts actions that converged their resource.
	Succeeded int `json:"succeeded"`

	// Skipped counts actions whose desired state was already satisfied
	// or that were deliberately not selected.
	Skipped int `json:"skipped"`

	// DependencySkipped counts actions skipped because a dependency
	// failed.
	DependencySkipped int `json:"dependency_skipped"`

	// Failed counts terminally failed actions.
	Failed int `json:"failed"`

	// Failures lists each failed action with its reason.
	Failures []Failure `json:"failures,omitempty"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`
}

// Summarize aggregates a run's records into a report.
func Summarize(run *Run) Report {
	report := Report{
		Total:    len(run.Records),
		Duration: run.Duration,
		Status:   run.Status,
	}

	for _, record := range run.Records {
		switch record.Outcome {
		case OutcomeSucceeded:
			report.Succeeded++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeDependencySkipped:
			report.DependencySkipped++
		case OutcomeFailed:
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				ResourceID: record.ResourceID,
				Verb:       record.Verb,
				Detail:     record.ErrorDetail,
			})
		}
	}

	return report
}

// ExitCode maps the report to the process exit contract: 0 when every
// action succeeded or was skipped, 1 when any action failed.
func (r Report) ExitCode() int {
	if r.Failed > 0 || r.DependencySkipped > 0 {
		return 1
	}
	return 0
}

// Write renders the human-readable summary.
func (r Report) Write(w io.Writer) {
	fmt.Fprintf(w, "run %s: %d total, %d succeeded, %d skipped, %d failed",
		r.Status, r.Total, r.Succeeded, r.Skipped+r.DependencySkipped, r.Failed)
	if r.DependencySkipped > 0 {
		fmt.Fprintf(w, " (%d skipped due to dependency failure)", r.DependencySkipped)
	}
	fmt.Fprintf(w, " in %s\n", r.Duration.Round(time.Millisecond))

	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed: %s (%s): %s\n", f.ResourceID, f.Verb, f.Detail)
	}
}
