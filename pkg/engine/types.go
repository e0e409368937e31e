package engine

import (
	"fmt"
	"time"
)

// Kind identifies a resource driver.
type Kind string

const (
	// KindPackage is an apt package.
	KindPackage Kind = "package"

	// KindAptRepository is an apt source registration.
	KindAptRepository Kind = "apt-repository"

	// KindDownloadedFile is a file fetched from a URL.
	KindDownloadedFile Kind = "downloaded-file"

	// KindSymlink is a filesystem symlink.
	KindSymlink Kind = "symlink"

	// KindShellRcLine is a line appended to a shell startup file.
	KindShellRcLine Kind = "shell-rc-line"

	// KindUserGroup is a user's membership in a system group.
	KindUserGroup Kind = "user-group"

	// KindServiceEnable is a systemd unit enablement.
	KindServiceEnable Kind = "service-enable"
)

// Kinds lists all resource kinds in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindPackage,
		KindAptRepository,
		KindDownloadedFile,
		KindSymlink,
		KindShellRcLine,
		KindUserGroup,
		KindServiceEnable,
	}
}

// Validate checks if the kind is known.
func (k Kind) Validate() error {
	for _, known := range Kinds() {
		if k == known {
			return nil
		}
	}
	return fmt.Errorf("unknown resource kind: %s", k)
}

// ResourceID is the identity of a resource within a manifest: "kind/name".
type ResourceID string

// MakeResourceID builds a resource identity from kind and name.
func MakeResourceID(kind Kind, name string) ResourceID {
	return ResourceID(string(kind) + "/" + name)
}

// Resource is a single desired-state declaration.
type Resource struct {
	// Kind selects the driver responsible for this resource.
	Kind Kind `json:"kind"`

	// Name identifies the resource within its kind. (Kind, Name) is
	// unique within a manifest.
	Name string `json:"name"`

	// Params are kind-specific parameters (version, url, path, ...).
	Params map[string]string `json:"params,omitempty"`

	// DependsOn lists resource identities that must converge first.
	DependsOn []ResourceID `json:"depends_on,omitempty"`

	// Reinstall forces an apply even when the observed state already
	// satisfies the declaration. Per-resource opt-in, never a default.
	Reinstall bool `json:"reinstall,omitempty"`
}

// ID returns the resource identity.
func (r Resource) ID() ResourceID {
	return MakeResourceID(r.Kind, r.Name)
}

// Param returns a parameter value, or the empty string when unset.
func (r Resource) Param(key string) string {
	return r.Params[key]
}

// Manifest is an ordered sequence of resource declarations. Declaration
// order is the deterministic tie-break for planning.
type Manifest struct {
	// Resources are the desired-state declarations, in declaration order.
	Resources []Resource `json:"resources"`
}

// ProbeResult is the observed state of one resource. Ephemeral: it is
// recomputed on every run and never persisted.
type ProbeResult struct {
	// ResourceID is the identity of the probed resource.
	ResourceID ResourceID `json:"resource_id"`

	// Present reports whether the resource exists on the machine. An
	// inspection error yields Present=false: absence of certainty is
	// treated as absence, forcing a safe re-apply instead of a skip.
	Present bool `json:"present"`

	// Observed is the installed version or content hash, when known.
	Observed string `json:"observed,omitempty"`

	// Detail carries the diagnostic when inspection failed.
	Detail string `json:"detail,omitempty"`
}

// Verb is the operation a plan assigns to a resource.
type Verb string

const (
	// VerbSkip records that the desired state is already satisfied.
	VerbSkip Verb = "skip"

	// VerbInstall installs an absent package.
	VerbInstall Verb = "install"

	// VerbReinstall re-applies a present package (explicit opt-in).
	VerbReinstall Verb = "reinstall"

	// VerbUpdate converges a present resource whose observed state
	// differs from the declaration.
	VerbUpdate Verb = "update"

	// VerbCreate materializes an absent non-package resource.
	VerbCreate Verb = "create"
)

// Validate checks if the verb is valid.
func (v Verb) Validate() error {
	switch v {
	case VerbSkip, VerbInstall, VerbReinstall, VerbUpdate, VerbCreate:
		return nil
	default:
		return fmt.Errorf("invalid verb: %s", v)
	}
}

// Mutates reports whether the verb changes machine state.
func (v Verb) Mutates() bool {
	return v != VerbSkip
}

// Action is one planned operation. Produced by the Planner, consumed
// exactly once by the Executor.
type Action struct {
	// ResourceID is the identity of the resource to act on.
	ResourceID ResourceID `json:"resource_id"`

	// Verb is the operation to perform.
	Verb Verb `json:"verb"`

	// Rationale explains why the planner chose this verb.
	Rationale string `json:"rationale"`

	// Resource is the resolved declaration, carried for apply.
	Resource Resource `json:"resource"`

	// Probe is the observation the verb was planned against. Drivers
	// re-check it inside apply; machine state may have moved since.
	Probe ProbeResult `json:"probe"`
}

// Plan is an ordered, fully-resolved sequence of actions. The planner
// owns it exclusively until handed to the executor.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Actions are the planned operations in dependency order: an action
	// always follows every action it depends on.
	Actions []Action `json:"actions"`

	// Graph is the dependency graph the order was derived from.
	Graph *Graph `json:"-"`

	// Summary provides verb counts for the plan.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides statistics about a plan.
type PlanSummary struct {
	// Total is the number of resources in the plan.
	Total int `json:"total"`

	// ToApply is the number of actions that will mutate the machine.
	ToApply int `json:"to_apply"`

	// Skips is the number of resources already in their desired state.
	Skips int `json:"skips"`
}

// Outcome is the terminal result of executing one action.
type Outcome string

const (
	// OutcomeSucceeded indicates the apply converged the resource.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed indicates the apply failed terminally.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped indicates no apply was needed: planned as skip,
	// or the precondition re-check inside apply found the desired state
	// already satisfied.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeDependencySkipped indicates the resource was never applied
	// because a dependency failed terminally.
	OutcomeDependencySkipped Outcome = "skipped-due-to-dependency-failure"
)

// IsFailure reports whether the outcome blocks dependents.
func (o Outcome) IsFailure() bool {
	return o == OutcomeFailed || o == OutcomeDependencySkipped
}

// ExecutionRecord is the immutable record of one executed action.
type ExecutionRecord struct {
	// ResourceID is the identity of the resource acted on.
	ResourceID ResourceID `json:"resource_id"`

	// Verb is the operation that was planned.
	Verb Verb `json:"verb"`

	// Outcome is the terminal result.
	Outcome Outcome `json:"outcome"`

	// ErrorDetail carries the failure reason, when Outcome is failed,
	// or the skip rationale.
	ErrorDetail string `json:"error_detail,omitempty"`

	// Attempts is the total number of apply attempts (1 + retries).
	Attempts int `json:"attempts"`

	// StartedAt is when execution of this action began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total execution time including retries.
	Duration time.Duration `json:"duration"`
}

// RunStatus is the overall status of a run.
type RunStatus string

const (
	// RunStatusSucceeded indicates every action succeeded or was skipped
	// with its desired state satisfied.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates at least one action failed.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the run was halted between actions.
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one execution of a plan, with its full record set. Records are
// append-only during execution and read-only afterwards.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`

	// PlanID is the plan that was executed.
	PlanID string `json:"plan_id"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Records are the execution records, one per planned action.
	Records []ExecutionRecord `json:"records"`
}
