package drivers

import (
	"context"
	"fmt"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// aptLockKey is shared by every driver that invokes the apt frontend;
// apt tolerates exactly one concurrent invocation.
const aptLockKey = "apt"

// PackageDriver manages apt packages.
//
// Parameters: "version" pins an exact version; empty means any
// installed version satisfies the declaration.
type PackageDriver struct {
	runner system.Runner
}

// NewPackageDriver creates the apt package driver.
func NewPackageDriver(runner system.Runner) *PackageDriver {
	return &PackageDriver{runner: runner}
}

// Kind implements engine.Driver.
func (d *PackageDriver) Kind() engine.Kind { return engine.KindPackage }

// LockKey implements engine.Driver.
func (d *PackageDriver) LockKey() string { return aptLockKey }

// Retryable implements engine.Driver. Package installs go through the
// apt frontend's own retry handling and are not retried here.
func (d *PackageDriver) Retryable() bool { return false }

// Probe queries dpkg for the installed version. A query failure is
// treated as "not installed".
func (d *PackageDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	version, err := d.runner.Output(ctx, "dpkg-query", "-W", "-f=${Version}", res.Name)
	if err != nil {
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	return engine.ProbeResult{ResourceID: res.ID(), Present: true, Observed: version}
}

// PlanAction implements engine.Driver.
func (d *PackageDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if !current.Present {
		return engine.VerbInstall, "package not installed"
	}
	if res.Reinstall {
		return engine.VerbReinstall, "reinstall requested by declaration"
	}
	if want := res.Param("version"); want != "" && want != current.Observed {
		return engine.VerbUpdate, fmt.Sprintf("installed %s, declared %s", current.Observed, want)
	}
	return engine.VerbSkip, fmt.Sprintf("installed version %s satisfies declaration", current.Observed)
}

// Apply installs the package via apt-get. The precondition is
// re-checked first: if another process installed a satisfying version
// since planning, the action degrades to a skip.
func (d *PackageDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if action.Verb != engine.VerbReinstall {
		if verb, _ := d.PlanAction(res, d.Probe(ctx, res)); verb == engine.VerbSkip {
			return engine.OutcomeSkipped, nil
		}
	}

	spec := res.Name
	if version := res.Param("version"); version != "" {
		spec = fmt.Sprintf("%s=%s", res.Name, version)
	}

	args := []string{"install", "-y"}
	if action.Verb == engine.VerbReinstall {
		args = append(args, "--reinstall")
	}
	args = append(args, spec)

	if err := d.runner.Run(ctx, "apt-get", args...); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("apt-get install failed", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
