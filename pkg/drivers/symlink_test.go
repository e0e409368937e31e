package drivers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

func TestSymlinkDriver_Probe(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	driver := NewSymlinkDriver()

	t.Run("correct link", func(t *testing.T) {
		res := resource(engine.KindSymlink, "l", map[string]string{"path": link, "target": target})
		if probe := driver.Probe(context.Background(), res); !probe.Present {
			t.Error("expected present")
		}
	})

	t.Run("wrong target", func(t *testing.T) {
		res := resource(engine.KindSymlink, "l", map[string]string{"path": link, "target": "/elsewhere"})
		probe := driver.Probe(context.Background(), res)
		if probe.Present {
			t.Error("expected not present for wrong target")
		}
		if probe.Observed != target {
			t.Errorf("expected observed target %q, got %q", target, probe.Observed)
		}
	})

	t.Run("absent", func(t *testing.T) {
		res := resource(engine.KindSymlink, "l", map[string]string{"path": filepath.Join(dir, "missing"), "target": target})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent")
		}
	})
}

func TestSymlinkDriver_Apply_CreatesLink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "sub", "link")
	driver := NewSymlinkDriver()

	res := resource(engine.KindSymlink, "l", map[string]string{"path": link, "target": "/usr/bin/vim"})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})
	if action.Verb != engine.VerbCreate {
		t.Fatalf("expected create planned, got %s", action.Verb)
	}

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", outcome)
	}

	got, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("expected link: %v", err)
	}
	if got != "/usr/bin/vim" {
		t.Errorf("unexpected target: %q", got)
	}
}

func TestSymlinkDriver_Apply_RepointsStaleLink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink("/old/target", link); err != nil {
		t.Fatal(err)
	}

	driver := NewSymlinkDriver()
	res := resource(engine.KindSymlink, "l", map[string]string{"path": link, "target": "/new/target"})
	probe := driver.Probe(context.Background(), res)
	action := actionFor(driver, res, probe)
	if action.Verb != engine.VerbUpdate {
		t.Fatalf("expected update planned, got %s", action.Verb)
	}

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", outcome)
	}

	got, _ := os.Readlink(link)
	if got != "/new/target" {
		t.Errorf("expected repointed link, got %q", got)
	}
}

func TestSymlinkDriver_Apply_RefusesToReplaceRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("precious data"), 0o644); err != nil {
		t.Fatal(err)
	}

	driver := NewSymlinkDriver()
	res := resource(engine.KindSymlink, "l", map[string]string{"path": path, "target": "/usr/bin/vim"})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome != engine.OutcomeFailed {
		t.Errorf("expected failed, got %s", outcome)
	}

	// The regular file survives untouched.
	data, readErr := os.ReadFile(path)
	if readErr != nil || string(data) != "precious data" {
		t.Error("expected the regular file to be left alone")
	}
}

func TestSymlinkDriver_Apply_RecheckDegradesToSkip(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink("/usr/bin/vim", link); err != nil {
		t.Fatal(err)
	}

	driver := NewSymlinkDriver()
	res := resource(engine.KindSymlink, "l", map[string]string{"path": link, "target": "/usr/bin/vim"})
	// Planned when the link was absent; it appeared before apply.
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSkipped {
		t.Errorf("expected skip after re-check, got %s", outcome)
	}
}
