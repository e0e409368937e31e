package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		storePath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs from the history store",
		Long: `List previous runs recorded in the SQLite history store, or show
the full per-resource records of a single run.`,
		Example: `  # List recent runs
  ubuntu-setup history --store ~/.ubuntu-setup/history.db

  # Show one run in detail
  ubuntu-setup history --store ~/.ubuntu-setup/history.db 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := stores.NewSQLiteStore(storePath)
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "run %s\tstatus=%s\tstarted=%s\tduration=%s\n",
					run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.Duration)
				for _, rec := range run.Records {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%d attempt(s)\t%s\n",
						rec.ResourceID, rec.Verb, rec.Outcome, rec.Attempts, rec.ErrorDetail)
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.Duration)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database for run history")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}
