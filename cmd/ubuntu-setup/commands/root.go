package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/telemetry"
)

var (
	// Global flags
	logLevel  string
	logFormat string

	logger zerolog.Logger

	// appVersion is the build version, used for trace resource
	// attributes.
	appVersion = "dev"
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ubuntu-setup",
		Short: "Declarative workstation provisioning for Ubuntu",
		Long: `ubuntu-setup converges an Ubuntu machine onto a declared manifest.

A manifest lists resources (packages, apt repositories, downloaded
files, symlinks, shell rc lines, group memberships, enabled services)
together with their dependencies. Each run probes the machine, plans
only the actions needed to close the gap, and applies them in
dependency order. Runs are idempotent: a converged machine plans
nothing but skips.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = telemetry.NewLogger(telemetry.LoggingConfig{
				Level:  logLevel,
				Format: logFormat,
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
