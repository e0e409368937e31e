package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/drivers"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/manifest"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

func newProbeCommand() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Inspect the current state of every manifest resource",
		Long: `Probe each resource in the manifest and print what the machine
currently looks like. Read-only; nothing is changed.`,
		Example: `  ubuntu-setup probe --manifest desktop.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.NewLoader().Load(manifestPath)
			if err != nil {
				return err
			}

			registry, err := drivers.DefaultRegistry(system.NewExecRunner(logger), system.NewHTTPFetcher(0))
			if err != nil {
				return err
			}

			planner := engine.NewPlanner(registry, logger)
			plan, err := planner.ComputePlan(cmd.Context(), m, engine.PlanOptions{})
			if err != nil {
				return err
			}

			for _, action := range plan.Actions {
				state := "absent"
				if action.Probe.Present {
					state = "present"
				}
				fmt.Fprintf(os.Stdout, "  %-40s %-8s %s\n", action.ResourceID, state, action.Probe.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file path (YAML or CUE)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}
