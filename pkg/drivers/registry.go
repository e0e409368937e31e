package drivers

import (
	"strings"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// DefaultRegistry assembles a driver registry covering every resource
// kind, backed by the given runner and fetcher.
func DefaultRegistry(runner system.Runner, fetcher system.Fetcher) (*engine.DriverRegistry, error) {
	registry := engine.NewDriverRegistry()

	all := []engine.Driver{
		NewPackageDriver(runner),
		NewAptRepositoryDriver(runner, ""),
		NewDownloadedFileDriver(fetcher),
		NewSymlinkDriver(),
		NewShellRcLineDriver(),
		NewUserGroupDriver(runner),
		NewServiceEnableDriver(runner),
	}
	for _, d := range all {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// splitFields splits whitespace-separated command output.
func splitFields(out string) []string {
	return strings.Fields(out)
}
