package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/manifest"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a manifest without touching the machine",
		Long: `Parse and validate a manifest file.

This checks syntax, schema conformance, duplicate resource identities,
dangling dependency references, and dependency cycles. The machine is
not probed.`,
		Example: `  ubuntu-setup validate desktop.yaml
  ubuntu-setup validate desktop.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.NewLoader().Load(args[0])
			if err != nil {
				return err
			}

			if _, err := engine.BuildGraph(m); err != nil {
				return err
			}

			fmt.Printf("%s: valid, %d resource(s)\n", args[0], len(m.Resources))
			return nil
		},
	}

	return cmd
}
