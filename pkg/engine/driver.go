package engine

import (
	"context"
	"fmt"
	"sync"
)

// Driver is the per-resource-kind implementation of probe, plan, and
// apply. Implementations must be safe for concurrent use: the planner
// probes independent resources in parallel and the executor may apply
// independent branches on a worker pool.
type Driver interface {
	// Kind returns the resource kind this driver handles.
	Kind() Kind

	// Probe inspects the current machine state for the resource. It
	// never mutates state and never fails: on inspection error it
	// returns Present=false with the diagnostic in Detail.
	Probe(ctx context.Context, res Resource) ProbeResult

	// PlanAction decides the verb for a resource given its observed
	// state, and a rationale for the decision.
	PlanAction(res Resource, current ProbeResult) (Verb, string)

	// Apply executes a planned action. It re-checks the precondition the
	// action was planned against and returns OutcomeSkipped when the
	// desired state is already satisfied, closing the probe-to-apply
	// race inherent in a two-phase plan/apply design.
	Apply(ctx context.Context, action Action) (Outcome, error)

	// LockKey names the process-wide exclusive lock apply must hold, or
	// "" when none is needed. All apt-backed drivers share "apt".
	LockKey() string

	// Retryable reports whether transient apply failures should be
	// retried. Only network-sourced kinds qualify.
	Retryable() bool
}

// DriverRegistry maps resource kinds to their drivers.
type DriverRegistry struct {
	mu      sync.RWMutex
	drivers map[Kind]Driver
}

// NewDriverRegistry creates an empty driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[Kind]Driver)}
}

// Register adds a driver. Registering a kind twice is a programming
// error and fails.
func (r *DriverRegistry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := d.Kind()
	if err := kind.Validate(); err != nil {
		return err
	}
	if _, exists := r.drivers[kind]; exists {
		return fmt.Errorf("driver already registered for kind %s", kind)
	}
	r.drivers[kind] = d
	return nil
}

// Get returns the driver for a kind.
func (r *DriverRegistry) Get(kind Kind) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("no driver registered for kind %s", kind)
	}
	return d, nil
}

// Kinds returns the registered kinds in the stable kind order.
func (r *DriverRegistry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.drivers))
	for _, k := range Kinds() {
		if _, ok := r.drivers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
