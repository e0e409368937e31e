package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoader_Load_YAML(t *testing.T) {
	path := writeManifest(t, "desktop.yaml", `
version: "1"
resources:
  - kind: package
    name: git
  - kind: downloaded-file
    name: installer
    params:
      url: https://example.com/installer.sh
      path: /opt/installer.sh
      sha256: abc123
    depends_on:
      - package/git
  - kind: package
    name: docker
    reinstall: true
`)

	m, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(m.Resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(m.Resources))
	}
	if m.Resources[0].Kind != engine.KindPackage || m.Resources[0].Name != "git" {
		t.Errorf("unexpected first resource: %+v", m.Resources[0])
	}

	download := m.Resources[1]
	if download.Params["url"] != "https://example.com/installer.sh" {
		t.Errorf("unexpected url param: %q", download.Params["url"])
	}
	if len(download.DependsOn) != 1 || download.DependsOn[0] != "package/git" {
		t.Errorf("unexpected dependencies: %v", download.DependsOn)
	}

	if !m.Resources[2].Reinstall {
		t.Error("expected reinstall flag to carry through")
	}
}

func TestLoader_Load_CUE(t *testing.T) {
	path := writeManifest(t, "desktop.cue", `
version: "1"
resources: [
	{kind: "package", name: "git"},
	{
		kind: "symlink"
		name: "editor"
		params: {
			path:   "/usr/local/bin/editor"
			target: "/usr/bin/vim"
		}
		depends_on: ["package/git"]
	},
]
`)

	m, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(m.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(m.Resources))
	}
	if m.Resources[1].Kind != engine.KindSymlink {
		t.Errorf("expected symlink kind, got %s", m.Resources[1].Kind)
	}
	if m.Resources[1].Params["target"] != "/usr/bin/vim" {
		t.Errorf("unexpected target param: %q", m.Resources[1].Params["target"])
	}
}

func TestLoader_Load_CUERejectsUnknownKind(t *testing.T) {
	path := writeManifest(t, "bad.cue", `
resources: [
	{kind: "floppy-disk", name: "a"},
]
`)

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_MalformedYAML(t *testing.T) {
	path := writeManifest(t, "bad.yaml", "resources: [kind: {{nope")

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_EmptyResources(t *testing.T) {
	path := writeManifest(t, "empty.yaml", `
version: "1"
resources: []
`)

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for empty resource list")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_UnknownKindYAML(t *testing.T) {
	path := writeManifest(t, "badkind.yaml", `
resources:
  - kind: floppy-disk
    name: a
`)

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_DependencyWithoutSlash(t *testing.T) {
	path := writeManifest(t, "baddep.yaml", `
resources:
  - kind: package
    name: git
    depends_on:
      - notanidentity
`)

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for malformed dependency identity")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}

func TestLoader_Load_MissingName(t *testing.T) {
	path := writeManifest(t, "noname.yaml", `
resources:
  - kind: package
`)

	_, err := NewLoader().Load(path)
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !engine.IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}
