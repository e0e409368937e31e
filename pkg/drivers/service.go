package drivers

import (
	"context"
	"strings"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// ServiceEnableDriver enables systemd units.
//
// Parameters: "unit" overrides the unit name (defaults to the resource
// name); "now" = "true" also starts the unit.
type ServiceEnableDriver struct {
	runner system.Runner
}

// NewServiceEnableDriver creates the service driver.
func NewServiceEnableDriver(runner system.Runner) *ServiceEnableDriver {
	return &ServiceEnableDriver{runner: runner}
}

// Kind implements engine.Driver.
func (d *ServiceEnableDriver) Kind() engine.Kind { return engine.KindServiceEnable }

// LockKey implements engine.Driver.
func (d *ServiceEnableDriver) LockKey() string { return "" }

// Retryable implements engine.Driver.
func (d *ServiceEnableDriver) Retryable() bool { return false }

func (d *ServiceEnableDriver) unit(res engine.Resource) string {
	if unit := res.Param("unit"); unit != "" {
		return unit
	}
	return res.Name
}

// Probe asks systemd whether the unit is enabled. is-enabled exits
// non-zero for disabled units, which reads as "absent" here.
func (d *ServiceEnableDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	out, err := d.runner.Output(ctx, "systemctl", "is-enabled", d.unit(res))
	if err != nil {
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	state := strings.TrimSpace(out)
	return engine.ProbeResult{
		ResourceID: res.ID(),
		Present:    state == "enabled",
		Observed:   state,
	}
}

// PlanAction implements engine.Driver.
func (d *ServiceEnableDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "unit already enabled"
	}
	return engine.VerbCreate, "unit not enabled"
}

// Apply enables the unit, optionally starting it.
func (d *ServiceEnableDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if probe := d.Probe(ctx, res); probe.Present {
		return engine.OutcomeSkipped, nil
	}

	args := []string{"enable"}
	if res.Param("now") == "true" {
		args = append(args, "--now")
	}
	args = append(args, d.unit(res))

	if err := d.runner.Run(ctx, "systemctl", args...); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("systemctl enable failed", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
