package drivers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// SymlinkDriver manages filesystem symlinks.
//
// Parameters: "path" is the link location, "target" what it points at.
// Idempotent by construction: a correct existing link is a skip, a
// wrong one is replaced.
type SymlinkDriver struct{}

// NewSymlinkDriver creates the symlink driver.
func NewSymlinkDriver() *SymlinkDriver { return &SymlinkDriver{} }

// Kind implements engine.Driver.
func (d *SymlinkDriver) Kind() engine.Kind { return engine.KindSymlink }

// LockKey implements engine.Driver.
func (d *SymlinkDriver) LockKey() string { return "" }

// Retryable implements engine.Driver.
func (d *SymlinkDriver) Retryable() bool { return false }

// Probe reads the link and compares its target to the declaration.
func (d *SymlinkDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	path := res.Param("path")
	current, err := os.Readlink(path)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.ProbeResult{ResourceID: res.ID(), Present: false}
		}
		// Exists but is not a symlink, or is unreadable.
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	return engine.ProbeResult{
		ResourceID: res.ID(),
		Present:    current == res.Param("target"),
		Observed:   current,
	}
}

// PlanAction implements engine.Driver.
func (d *SymlinkDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "symlink points at declared target"
	}
	if current.Observed != "" {
		return engine.VerbUpdate, fmt.Sprintf("symlink points at %s", current.Observed)
	}
	return engine.VerbCreate, "symlink absent"
}

// Apply creates or repoints the link. A regular file at the link path
// is never silently replaced.
func (d *SymlinkDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if probe := d.Probe(ctx, res); probe.Present {
		return engine.OutcomeSkipped, nil
	}

	path := res.Param("path")
	target := res.Param("target")
	if path == "" || target == "" {
		return engine.OutcomeFailed, engine.NewPermanentError("symlink requires path and target parameters", nil).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return engine.OutcomeFailed, engine.NewPermanentError(
				fmt.Sprintf("refusing to replace non-symlink at %s", path), nil,
			).WithResource(res.ID()).WithVerb(action.Verb)
		}
		if err := os.Remove(path); err != nil {
			return engine.OutcomeFailed, engine.NewPermanentError("remove stale symlink", err).
				WithResource(res.ID()).WithVerb(action.Verb)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("create parent directory", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	if err := os.Symlink(target, path); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("create symlink", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
