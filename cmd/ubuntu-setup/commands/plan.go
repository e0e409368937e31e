package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/drivers"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/manifest"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

func newPlanCommand() *cobra.Command {
	var (
		manifestPath string
		only         []string
		dotFile      string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and print a plan without applying",
		Long: `Probe the machine and print the actions a run would take.

The machine is inspected read-only; nothing is changed. With --dot the
dependency graph is written in Graphviz format for visualization.`,
		Example: `  # Print the plan
  ubuntu-setup plan --manifest desktop.yaml

  # Write the dependency graph for rendering with dot(1)
  ubuntu-setup plan --manifest desktop.yaml --dot plan.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.NewLoader().Load(manifestPath)
			if err != nil {
				return err
			}

			kinds, err := parseKinds(only)
			if err != nil {
				return err
			}

			registry, err := drivers.DefaultRegistry(system.NewExecRunner(logger), system.NewHTTPFetcher(0))
			if err != nil {
				return err
			}

			planner := engine.NewPlanner(registry, logger)
			plan, err := planner.ComputePlan(cmd.Context(), m, engine.PlanOptions{Only: kinds})
			if err != nil {
				return err
			}

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(plan.Graph.ToDOT()), 0o644); err != nil {
					return fmt.Errorf("failed to write dot file: %w", err)
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			writePlan(os.Stdout, plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file path (YAML or CUE)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "limit the plan to these resource kinds")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the dependency graph in DOT format")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the plan as JSON")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

// writePlan prints a human-readable plan, one action per line.
func writePlan(w io.Writer, plan *engine.Plan) {
	fmt.Fprintf(w, "plan %s: %d resource(s), %d to apply, %d skip(s)\n",
		plan.ID, plan.Summary.Total, plan.Summary.ToApply, plan.Summary.Skips)
	for _, action := range plan.Actions {
		fmt.Fprintf(w, "  %-10s %-40s %s\n", action.Verb, action.ResourceID, action.Rationale)
	}
}
