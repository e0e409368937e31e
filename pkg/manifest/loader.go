package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Loader parses and validates manifest files.
type Loader struct {
	validate *validator.Validate
	schema   *Schema
}

// NewLoader creates a manifest loader.
func NewLoader() *Loader {
	return &Loader{
		validate: validator.New(),
		schema:   NewSchema(),
	}
}

// Load reads, parses, and structurally validates a manifest file. Every
// failure is a ManifestError: a malformed manifest aborts before any
// action runs.
func (l *Loader) Load(path string) (*engine.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewManifestError(fmt.Sprintf("read manifest %s", path), err)
	}
	return l.Parse(data, path)
}

// Parse parses manifest content. The format is chosen by file
// extension: .cue is CUE, everything else is YAML.
func (l *Loader) Parse(data []byte, path string) (*engine.Manifest, error) {
	var doc Document
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		err = l.schema.Decode(data, path, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, engine.NewManifestError(fmt.Sprintf("parse manifest %s", path), err)
	}

	if err := l.validate.Struct(&doc); err != nil {
		return nil, engine.NewManifestError(fmt.Sprintf("invalid manifest %s", path), err)
	}

	return doc.ToManifest(), nil
}
