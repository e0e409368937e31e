package drivers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

const dockerRepoLine = "deb [arch=amd64] https://download.docker.com/linux/ubuntu noble stable"

func TestAptRepositoryDriver_Probe(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	driver := NewAptRepositoryDriver(runner, dir)

	t.Run("absent file", func(t *testing.T) {
		res := resource(engine.KindAptRepository, "docker", map[string]string{"line": dockerRepoLine})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent")
		}
	})

	t.Run("file with declared line", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "docker.list"), []byte(dockerRepoLine+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		res := resource(engine.KindAptRepository, "docker", map[string]string{"line": dockerRepoLine})
		if probe := driver.Probe(context.Background(), res); !probe.Present {
			t.Error("expected present")
		}
	})

	t.Run("file without declared line", func(t *testing.T) {
		res := resource(engine.KindAptRepository, "docker", map[string]string{"line": "deb https://other.example.com stable main"})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent when line differs")
		}
	})
}

func TestAptRepositoryDriver_Apply_WritesListAndRefreshesIndex(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	driver := NewAptRepositoryDriver(runner, dir)

	res := resource(engine.KindAptRepository, "docker", map[string]string{"line": dockerRepoLine})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", outcome)
	}

	data, err := os.ReadFile(filepath.Join(dir, "docker.list"))
	if err != nil {
		t.Fatalf("expected list file: %v", err)
	}
	if string(data) != dockerRepoLine+"\n" {
		t.Errorf("unexpected list content: %q", string(data))
	}
	if !runner.called("apt-get update") {
		t.Errorf("expected apt-get update, calls: %v", runner.calls)
	}
}

func TestAptRepositoryDriver_Apply_UpdateFailureIsTransient(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	runner.errs["apt-get update"] = errors.New("could not resolve mirror")
	driver := NewAptRepositoryDriver(runner, dir)

	res := resource(engine.KindAptRepository, "docker", map[string]string{"line": dockerRepoLine})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if outcome != engine.OutcomeFailed {
		t.Errorf("expected failed, got %s", outcome)
	}
	if !engine.IsRetryable(err) {
		t.Errorf("expected transient classification, got: %v", err)
	}
}

func TestAptRepositoryDriver_Apply_RetryAfterUpdateFailureRefreshesIndex(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	runner.errs["apt-get update"] = errors.New("could not resolve mirror")
	driver := NewAptRepositoryDriver(runner, dir)

	res := resource(engine.KindAptRepository, "docker", map[string]string{"line": dockerRepoLine})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	// First attempt writes the list file but fails on the refresh.
	outcome, err := driver.Apply(context.Background(), action)
	if outcome != engine.OutcomeFailed || !engine.IsRetryable(err) {
		t.Fatalf("expected transient failure, got %s, %v", outcome, err)
	}

	// The retry must not degrade to a plain skip: the line is present
	// now, but the index was never refreshed.
	delete(runner.errs, "apt-get update")
	outcome, err = driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error on retry, got: %v", err)
	}
	if outcome == engine.OutcomeFailed {
		t.Fatalf("expected retry to converge, got %s", outcome)
	}

	updates := 0
	for _, c := range runner.calls {
		if c == "apt-get update" {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("expected apt-get update on both attempts, got %d calls", updates)
	}

	data, err := os.ReadFile(filepath.Join(dir, "docker.list"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != dockerRepoLine+"\n" {
		t.Errorf("unexpected list content %q", data)
	}
}

func TestAptRepositoryDriver_Apply_CustomFileName(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	driver := NewAptRepositoryDriver(runner, dir)

	res := resource(engine.KindAptRepository, "docker", map[string]string{
		"line": dockerRepoLine,
		"file": "docker-ce.list",
	})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	if _, err := driver.Apply(context.Background(), action); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docker-ce.list")); err != nil {
		t.Errorf("expected custom file name: %v", err)
	}
}

func TestWriteFileAtomic_NoPartialFileOnExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.list")
	if err := os.WriteFile(path, []byte("old content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := writeFileAtomic(path, []byte("new content\n"), 0o600); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new content\n" {
		t.Errorf("unexpected content: %q", string(data))
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}

	// No staging leftovers.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the target file, got %d entries", len(entries))
	}
}
