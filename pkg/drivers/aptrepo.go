package drivers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// defaultSourcesDir is where apt source registrations live.
const defaultSourcesDir = "/etc/apt/sources.list.d"

// AptRepositoryDriver manages apt source registrations as .list files.
//
// Parameters: "line" is the deb source line; "file" overrides the list
// file name (defaults to <name>.list).
type AptRepositoryDriver struct {
	runner     system.Runner
	sourcesDir string
}

// NewAptRepositoryDriver creates the apt repository driver. An empty
// sourcesDir selects the system default.
func NewAptRepositoryDriver(runner system.Runner, sourcesDir string) *AptRepositoryDriver {
	if sourcesDir == "" {
		sourcesDir = defaultSourcesDir
	}
	return &AptRepositoryDriver{runner: runner, sourcesDir: sourcesDir}
}

// Kind implements engine.Driver.
func (d *AptRepositoryDriver) Kind() engine.Kind { return engine.KindAptRepository }

// LockKey implements engine.Driver.
func (d *AptRepositoryDriver) LockKey() string { return aptLockKey }

// Retryable implements engine.Driver. Registering a repository hits the
// network through apt-get update.
func (d *AptRepositoryDriver) Retryable() bool { return true }

func (d *AptRepositoryDriver) listPath(res engine.Resource) string {
	file := res.Param("file")
	if file == "" {
		file = res.Name + ".list"
	}
	return filepath.Join(d.sourcesDir, file)
}

// Probe checks whether the list file exists and carries the declared
// source line.
func (d *AptRepositoryDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	data, err := os.ReadFile(d.listPath(res))
	if err != nil {
		if os.IsNotExist(err) {
			return engine.ProbeResult{ResourceID: res.ID(), Present: false}
		}
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}

	line := strings.TrimSpace(res.Param("line"))
	for _, have := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(have) == line {
			return engine.ProbeResult{ResourceID: res.ID(), Present: true, Observed: line}
		}
	}
	return engine.ProbeResult{ResourceID: res.ID(), Present: false}
}

// PlanAction implements engine.Driver.
func (d *AptRepositoryDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "repository already registered"
	}
	return engine.VerbCreate, "repository not registered"
}

// Apply writes the list file atomically and refreshes the package
// index.
func (d *AptRepositoryDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	line := strings.TrimSpace(res.Param("line"))
	if line == "" {
		return engine.OutcomeFailed, engine.NewPermanentError("apt-repository requires a line parameter", nil).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	// The line may already be in place: written by another actor since
	// the probe, or by an earlier attempt whose index refresh failed
	// transiently. Skip the write then, but never the refresh; the
	// repository is converged only once apt-get update has succeeded.
	wrote := false
	if probe := d.Probe(ctx, res); !probe.Present {
		path := d.listPath(res)
		if err := writeFileAtomic(path, []byte(line+"\n"), 0o644); err != nil {
			return engine.OutcomeFailed, engine.NewPermanentError("write sources list", err).
				WithResource(res.ID()).WithVerb(action.Verb)
		}
		wrote = true
	}

	if err := d.runner.Run(ctx, "apt-get", "update"); err != nil {
		// Index refresh talks to remote mirrors; worth a retry.
		return engine.OutcomeFailed, engine.NewTransientError("apt-get update failed", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	if !wrote {
		return engine.OutcomeSkipped, nil
	}
	return engine.OutcomeSucceeded, nil
}

// writeFileAtomic stages content next to the target and renames it into
// place so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
