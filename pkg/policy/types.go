package policy

import (
	"time"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Severity is the severity level of a policy violation.
type Severity string

const (
	// SeverityWarning is for findings that should be reviewed but do
	// not block the run.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the run.
	SeverityError Severity = "error"
)

// Policy is a named rule with its Rego source.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`
}

// Violation is a single policy finding against a planned action.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// ResourceID identifies the offending resource.
	ResourceID engine.ResourceID `json:"resource_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating all policies against a plan.
type Result struct {
	// Allowed is false when any error-severity violation exists.
	Allowed bool `json:"allowed"`

	// Violations lists every finding, warnings included.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Errors returns only the blocking violations.
func (r *Result) Errors() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}

// actionInput is the per-action document handed to Rego as input.
type actionInput struct {
	Kind     engine.Kind       `json:"kind"`
	Name     string            `json:"name"`
	ID       engine.ResourceID `json:"id"`
	Verb     engine.Verb       `json:"verb"`
	Params   map[string]string `json:"params"`
	Rationale string           `json:"rationale"`
}
