package drivers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

func TestShellRcLineDriver_Probe(t *testing.T) {
	dir := t.TempDir()
	rc := filepath.Join(dir, ".bashrc")
	if err := os.WriteFile(rc, []byte("export EDITOR=vim\n  alias ll='ls -la'  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	driver := NewShellRcLineDriver()

	t.Run("line present", func(t *testing.T) {
		res := resource(engine.KindShellRcLine, "editor", map[string]string{
			"file": rc, "line": "export EDITOR=vim",
		})
		if probe := driver.Probe(context.Background(), res); !probe.Present {
			t.Error("expected present")
		}
	})

	t.Run("whitespace-insensitive match", func(t *testing.T) {
		res := resource(engine.KindShellRcLine, "alias", map[string]string{
			"file": rc, "line": "alias ll='ls -la'",
		})
		if probe := driver.Probe(context.Background(), res); !probe.Present {
			t.Error("expected match ignoring surrounding whitespace")
		}
	})

	t.Run("line absent", func(t *testing.T) {
		res := resource(engine.KindShellRcLine, "path", map[string]string{
			"file": rc, "line": "export PATH=$PATH:/opt/bin",
		})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		res := resource(engine.KindShellRcLine, "x", map[string]string{
			"file": filepath.Join(dir, ".zshrc"), "line": "anything",
		})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent for missing file")
		}
	})
}

func TestShellRcLineDriver_Apply_AppendsLine(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(rc, []byte("export EDITOR=vim\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	driver := NewShellRcLineDriver()
	res := resource(engine.KindShellRcLine, "path", map[string]string{
		"file": rc, "line": "export PATH=$PATH:/opt/bin",
	})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", outcome)
	}

	data, _ := os.ReadFile(rc)
	want := "export EDITOR=vim\nexport PATH=$PATH:/opt/bin\n"
	if string(data) != want {
		t.Errorf("unexpected file content:\n%q", string(data))
	}
}

func TestShellRcLineDriver_Apply_CreatesMissingFile(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".zshrc")

	driver := NewShellRcLineDriver()
	res := resource(engine.KindShellRcLine, "path", map[string]string{
		"file": rc, "line": "export PATH=$PATH:/opt/bin",
	})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	if _, err := driver.Apply(context.Background(), action); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatalf("expected file to be created: %v", err)
	}
	if string(data) != "export PATH=$PATH:/opt/bin\n" {
		t.Errorf("unexpected content: %q", string(data))
	}
}

func TestShellRcLineDriver_Apply_HandlesMissingTrailingNewline(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(rc, []byte("export EDITOR=vim"), 0o644); err != nil {
		t.Fatal(err)
	}

	driver := NewShellRcLineDriver()
	res := resource(engine.KindShellRcLine, "path", map[string]string{
		"file": rc, "line": "export PATH=$PATH:/opt/bin",
	})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	if _, err := driver.Apply(context.Background(), action); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	data, _ := os.ReadFile(rc)
	if strings.Contains(string(data), "vimexport") {
		t.Errorf("appended line ran into previous content: %q", string(data))
	}
}

func TestShellRcLineDriver_Apply_IdempotentOnRecheck(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".bashrc")
	line := "export PATH=$PATH:/opt/bin"
	if err := os.WriteFile(rc, []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	driver := NewShellRcLineDriver()
	res := resource(engine.KindShellRcLine, "path", map[string]string{"file": rc, "line": line})
	// Planned before the line existed.
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSkipped {
		t.Errorf("expected skip, got %s", outcome)
	}

	data, _ := os.ReadFile(rc)
	if strings.Count(string(data), line) != 1 {
		t.Errorf("expected exactly one occurrence, got content: %q", string(data))
	}
}
