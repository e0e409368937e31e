package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/drivers"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/manifest"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/policy"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/stores"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/telemetry"
)

// runOptions carries everything a converge needs, so the watch command
// can re-run with the same settings.
type runOptions struct {
	manifestPath  string
	dryRun        bool
	only          []string
	parallelism   int
	storePath     string
	policyPaths   []string
	metricsListen string
	trace         bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe, plan, and apply a manifest",
		Long: `Converge the machine onto the manifest.

Each resource is probed for its current state, a plan is computed with
only the actions needed, and the plan is applied in dependency order.
Already-satisfied resources are skipped. With --dry-run the plan is
printed and nothing is applied.`,
		Example: `  # Converge onto a manifest
  ubuntu-setup run --manifest desktop.yaml

  # Show what would change without touching the machine
  ubuntu-setup run --manifest desktop.yaml --dry-run

  # Only converge package resources, four at a time
  ubuntu-setup run --manifest desktop.yaml --only package --parallelism 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return converge(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "manifest file path (YAML or CUE)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compute and print the plan without applying")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "limit the run to these resource kinds")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", 1, "max concurrent applies of independent resources")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "SQLite database for run history (empty disables)")
	cmd.Flags().StringSliceVar(&opts.policyPaths, "policy", nil, "additional .rego policy files or directories")
	cmd.Flags().StringVar(&opts.metricsListen, "metrics-listen", "", "address for the Prometheus /metrics endpoint")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "export run traces to stdout")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

// converge runs the full cycle for a manifest: load, plan, policy
// check, apply, report.
func converge(ctx context.Context, opts runOptions) error {
	m, err := manifest.NewLoader().Load(opts.manifestPath)
	if err != nil {
		return err
	}

	only, err := parseKinds(opts.only)
	if err != nil {
		return err
	}

	registry, err := drivers.DefaultRegistry(system.NewExecRunner(logger), system.NewHTTPFetcher(0))
	if err != nil {
		return err
	}

	planner := engine.NewPlanner(registry, logger)
	plan, err := planner.ComputePlan(ctx, m, engine.PlanOptions{Only: only})
	if err != nil {
		return err
	}

	if err := checkPolicies(ctx, plan, opts.policyPaths); err != nil {
		return err
	}

	if opts.dryRun {
		writePlan(os.Stdout, plan)
		return nil
	}

	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:   opts.metricsListen != "",
		Namespace: "ubuntu_setup",
		Listen:    opts.metricsListen,
	})
	metrics.Serve(logger)
	for _, action := range plan.Actions {
		metrics.RecordProbe(action.Probe.Present)
	}

	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: opts.trace}, appVersion)
	if err != nil {
		return err
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	executor := engine.NewExecutor(registry, logger)
	executor.MaxParallel = opts.parallelism
	executor.AddObserver(metrics)
	if opts.trace {
		executor.AddObserver(tracer)
	}

	runCtx, span := tracer.StartRunSpan(ctx, plan.ID)
	run, err := executor.Execute(runCtx, plan)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return err
	}
	span.End()

	metrics.RecordRunCompleted(run.Status, run.Duration)

	if opts.storePath != "" {
		if err := saveRun(ctx, opts.storePath, run); err != nil {
			logger.Error().Err(err).Msg("failed to persist run history")
		}
	}

	report := engine.Summarize(run)
	report.Write(os.Stdout)

	if report.ExitCode() != 0 {
		return fmt.Errorf("run %s completed with %d failed resource(s)", run.ID, report.Failed)
	}
	return nil
}

// checkPolicies gates the plan on built-in and user-supplied policies.
func checkPolicies(ctx context.Context, plan *engine.Plan, paths []string) error {
	policyEngine, err := policy.NewEngine(logger)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		if err := policyEngine.LoadPolicies(ctx, paths); err != nil {
			return err
		}
	}

	result, err := policyEngine.EvaluatePlan(ctx, plan)
	if err != nil {
		return err
	}

	for _, v := range result.Violations {
		if v.Severity == policy.SeverityWarning {
			logger.Warn().Str("policy", v.Policy).Str("resource_id", string(v.ResourceID)).Msg(v.Message)
		}
	}
	if !result.Allowed {
		for _, v := range result.Errors() {
			logger.Error().Str("policy", v.Policy).Str("resource_id", string(v.ResourceID)).Msg(v.Message)
		}
		return fmt.Errorf("plan rejected by %d policy violation(s)", len(result.Errors()))
	}
	return nil
}

func saveRun(ctx context.Context, path string, run *engine.Run) error {
	store, err := stores.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.SaveRun(ctx, run)
}

// parseKinds validates the --only flag values.
func parseKinds(values []string) ([]engine.Kind, error) {
	var kinds []engine.Kind
	for _, v := range values {
		kind := engine.Kind(strings.TrimSpace(v))
		if err := kind.Validate(); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
