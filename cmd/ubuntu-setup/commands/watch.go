package commands

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// watchDebounce coalesces editor write bursts into one re-run.
const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-converge whenever the manifest changes",
		Long: `Watch the manifest file and re-run the converge cycle on every
change. With --dry-run each cycle only prints the plan. A manifest
that fails to parse is reported and skipped; the watcher keeps
running. Stop with Ctrl-C.`,
		Example: `  ubuntu-setup watch --manifest desktop.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()

			// Watch the directory: editors replace files on save, which
			// drops a watch on the file itself.
			dir := filepath.Dir(opts.manifestPath)
			if err := watcher.Add(dir); err != nil {
				return err
			}
			target := filepath.Clean(opts.manifestPath)

			runOnce := func() {
				if err := converge(ctx, opts); err != nil {
					if engine.IsManifest(err) {
						logger.Error().Err(err).Msg("manifest invalid, waiting for next change")
						return
					}
					logger.Error().Err(err).Msg("converge failed, waiting for next change")
				}
			}

			runOnce()

			var timer *time.Timer
			pending := make(chan struct{}, 1)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-pending:
					runOnce()
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != target {
						continue
					}
					if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
						continue
					}
					logger.Info().Str("manifest", target).Msg("manifest changed")
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(watchDebounce, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error().Err(err).Msg("watch error")
				}
			}
		},
	}

	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "manifest file path (YAML or CUE)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the plan on each change without applying")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "limit each run to these resource kinds")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", 1, "max concurrent applies of independent resources")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "SQLite database for run history (empty disables)")
	cmd.Flags().StringSliceVar(&opts.policyPaths, "policy", nil, "additional .rego policy files or directories")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}
