package drivers

import (
	"context"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// userDBLockKey serializes account-database mutations; concurrent
// usermod invocations fight over /etc/passwd locks.
const userDBLockKey = "user-db"

// UserGroupDriver manages a user's membership in a system group.
//
// Parameters: "user" and "group".
type UserGroupDriver struct {
	runner system.Runner
}

// NewUserGroupDriver creates the group-membership driver.
func NewUserGroupDriver(runner system.Runner) *UserGroupDriver {
	return &UserGroupDriver{runner: runner}
}

// Kind implements engine.Driver.
func (d *UserGroupDriver) Kind() engine.Kind { return engine.KindUserGroup }

// LockKey implements engine.Driver.
func (d *UserGroupDriver) LockKey() string { return userDBLockKey }

// Retryable implements engine.Driver.
func (d *UserGroupDriver) Retryable() bool { return false }

// Probe lists the user's groups and looks for the declared one.
func (d *UserGroupDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	out, err := d.runner.Output(ctx, "id", "-nG", res.Param("user"))
	if err != nil {
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}

	group := res.Param("group")
	for _, have := range splitFields(out) {
		if have == group {
			return engine.ProbeResult{ResourceID: res.ID(), Present: true, Observed: group}
		}
	}
	return engine.ProbeResult{ResourceID: res.ID(), Present: false}
}

// PlanAction implements engine.Driver.
func (d *UserGroupDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "user already in group"
	}
	return engine.VerbCreate, "user not in group"
}

// Apply adds the user to the group.
func (d *UserGroupDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if probe := d.Probe(ctx, res); probe.Present {
		return engine.OutcomeSkipped, nil
	}

	user := res.Param("user")
	group := res.Param("group")
	if user == "" || group == "" {
		return engine.OutcomeFailed, engine.NewPermanentError("user-group requires user and group parameters", nil).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	if err := d.runner.Run(ctx, "usermod", "-aG", group, user); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("usermod failed", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
