package manifest

import (
	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Document is the on-disk shape of a manifest.
type Document struct {
	// Version is the manifest format version.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Resources are the desired-state declarations, in declaration
	// order. Order is the planner's deterministic tie-break.
	Resources []ResourceEntry `yaml:"resources" json:"resources" validate:"required,min=1,dive"`
}

// ResourceEntry is one declared resource.
type ResourceEntry struct {
	// Kind selects the driver.
	Kind string `yaml:"kind" json:"kind" validate:"required,oneof=package apt-repository downloaded-file symlink shell-rc-line user-group service-enable"`

	// Name identifies the resource within its kind.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Params are kind-specific parameters.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	// DependsOn lists "kind/name" identities that must converge first.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty" validate:"dive,contains=/"`

	// Reinstall opts this resource into unconditional re-apply.
	Reinstall bool `yaml:"reinstall,omitempty" json:"reinstall,omitempty"`
}

// ToManifest converts the document to the engine's manifest form.
func (d *Document) ToManifest() *engine.Manifest {
	m := &engine.Manifest{Resources: make([]engine.Resource, 0, len(d.Resources))}
	for _, entry := range d.Resources {
		deps := make([]engine.ResourceID, 0, len(entry.DependsOn))
		for _, dep := range entry.DependsOn {
			deps = append(deps, engine.ResourceID(dep))
		}
		m.Resources = append(m.Resources, engine.Resource{
			Kind:      engine.Kind(entry.Kind),
			Name:      entry.Name,
			Params:    entry.Params,
			DependsOn: deps,
			Reinstall: entry.Reinstall,
		})
	}
	return m
}
