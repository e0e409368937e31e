package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultProbeParallelism bounds concurrent probes. Probes are
// read-only and independent across resources, so a small pool hides
// subprocess latency without hammering the machine.
const defaultProbeParallelism = 4

// Planner computes an ordered plan from a manifest and the observed
// machine state.
type Planner struct {
	drivers *DriverRegistry
	logger  zerolog.Logger

	// ProbeParallelism bounds the probe worker pool. Zero means the
	// default.
	ProbeParallelism int
}

// PlanOptions narrows what the planner schedules.
type PlanOptions struct {
	// Only restricts mutation to the listed kinds. Resources of other
	// kinds are planned as skips so the report still covers them.
	Only []Kind
}

// NewPlanner creates a planner over the given driver registry.
func NewPlanner(drivers *DriverRegistry, logger zerolog.Logger) *Planner {
	return &Planner{
		drivers: drivers,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// ComputePlan validates the manifest, probes every resource, and emits
// the ordered plan. A structurally invalid manifest (duplicate identity,
// dangling dependency, cycle) yields a ManifestError and no plan.
func (p *Planner) ComputePlan(ctx context.Context, m *Manifest, opts PlanOptions) (*Plan, error) {
	graph, err := BuildGraph(m)
	if err != nil {
		return nil, err
	}

	byID := make(map[ResourceID]Resource, len(m.Resources))
	for _, res := range m.Resources {
		byID[res.ID()] = res
	}

	probes, err := p.probeAll(ctx, m.Resources)
	if err != nil {
		return nil, err
	}

	only := make(map[Kind]bool, len(opts.Only))
	for _, k := range opts.Only {
		only[k] = true
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Actions:   make([]Action, 0, len(graph.Order)),
		Graph:     graph,
	}

	for _, id := range graph.Order {
		res := byID[id]
		probe := probes[id]

		var verb Verb
		var rationale string
		if len(only) > 0 && !only[res.Kind] {
			verb, rationale = VerbSkip, "kind not selected"
		} else {
			driver, err := p.drivers.Get(res.Kind)
			if err != nil {
				return nil, NewManifestError("no driver for resource", err).WithResource(id)
			}
			verb, rationale = driver.PlanAction(res, probe)
		}

		p.logger.Debug().
			Str("resource_id", string(id)).
			Str("verb", string(verb)).
			Str("rationale", rationale).
			Msg("planned action")

		plan.Actions = append(plan.Actions, Action{
			ResourceID: id,
			Verb:       verb,
			Rationale:  rationale,
			Resource:   res,
			Probe:      probe,
		})

		plan.Summary.Total++
		if verb.Mutates() {
			plan.Summary.ToApply++
		} else {
			plan.Summary.Skips++
		}
	}

	return plan, nil
}

// probeAll inspects all resources on a bounded worker pool. Probe never
// fails; the only error out of here is context cancellation.
func (p *Planner) probeAll(ctx context.Context, resources []Resource) (map[ResourceID]ProbeResult, error) {
	parallelism := p.ProbeParallelism
	if parallelism <= 0 {
		parallelism = defaultProbeParallelism
	}
	if len(resources) < parallelism {
		parallelism = len(resources)
	}

	results := make(map[ResourceID]ProbeResult, len(resources))
	var mu sync.Mutex

	queue := make(chan Resource, len(resources))
	for _, res := range resources {
		queue <- res
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range queue {
				if ctx.Err() != nil {
					return
				}
				probe := p.probeOne(ctx, res)
				mu.Lock()
				results[res.ID()] = probe
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// probeOne inspects a single resource. A missing driver is reported as
// an absent resource with a diagnostic; the plan step surfaces the real
// error.
func (p *Planner) probeOne(ctx context.Context, res Resource) ProbeResult {
	driver, err := p.drivers.Get(res.Kind)
	if err != nil {
		return ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	return driver.Probe(ctx, res)
}
