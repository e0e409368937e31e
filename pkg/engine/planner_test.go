package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// fakeDriver is a configurable in-memory driver for planner and
// executor tests.
type fakeDriver struct {
	kind      Kind
	present   map[string]bool
	lockKey   string
	retryable bool

	applyFn     func(ctx context.Context, action Action) (Outcome, error)
	probeCalls  atomic.Int64
	applyCalls  atomic.Int64
}

func (d *fakeDriver) Kind() Kind { return d.kind }

func (d *fakeDriver) Probe(_ context.Context, res Resource) ProbeResult {
	d.probeCalls.Add(1)
	return ProbeResult{
		ResourceID: res.ID(),
		Present:    d.present[res.Name],
	}
}

func (d *fakeDriver) PlanAction(res Resource, current ProbeResult) (Verb, string) {
	if current.Present {
		return VerbSkip, "already present"
	}
	return VerbInstall, "not present"
}

func (d *fakeDriver) Apply(ctx context.Context, action Action) (Outcome, error) {
	d.applyCalls.Add(1)
	if d.applyFn != nil {
		return d.applyFn(ctx, action)
	}
	return OutcomeSucceeded, nil
}

func (d *fakeDriver) LockKey() string { return d.lockKey }
func (d *fakeDriver) Retryable() bool { return d.retryable }

func newTestRegistry(t *testing.T, drivers ...Driver) *DriverRegistry {
	t.Helper()
	registry := NewDriverRegistry()
	for _, d := range drivers {
		if err := registry.Register(d); err != nil {
			t.Fatalf("failed to register driver: %v", err)
		}
	}
	return registry
}

func TestPlanner_ComputePlan_InstallsAbsentResources(t *testing.T) {
	driver := &fakeDriver{kind: KindPackage, present: map[string]bool{"git": true}}
	planner := NewPlanner(newTestRegistry(t, driver), zerolog.Nop())

	m := &Manifest{Resources: []Resource{
		res(KindPackage, "git"),
		res(KindPackage, "curl", "package/git"),
	}}

	plan, err := planner.ComputePlan(context.Background(), m, PlanOptions{})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(plan.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(plan.Actions))
	}
	if plan.Actions[0].ResourceID != "package/git" || plan.Actions[0].Verb != VerbSkip {
		t.Errorf("expected package/git planned as skip, got %s %s", plan.Actions[0].ResourceID, plan.Actions[0].Verb)
	}
	if plan.Actions[1].ResourceID != "package/curl" || plan.Actions[1].Verb != VerbInstall {
		t.Errorf("expected package/curl planned as install, got %s %s", plan.Actions[1].ResourceID, plan.Actions[1].Verb)
	}
	if plan.Summary.Total != 2 || plan.Summary.ToApply != 1 || plan.Summary.Skips != 1 {
		t.Errorf("unexpected summary: %+v", plan.Summary)
	}
	if plan.ID == "" {
		t.Error("expected plan to carry an ID")
	}
}

func TestPlanner_ComputePlan_ProbesEveryResource(t *testing.T) {
	driver := &fakeDriver{kind: KindPackage, present: map[string]bool{}}
	planner := NewPlanner(newTestRegistry(t, driver), zerolog.Nop())

	m := &Manifest{Resources: []Resource{
		res(KindPackage, "a"),
		res(KindPackage, "b"),
		res(KindPackage, "c"),
	}}

	if _, err := planner.ComputePlan(context.Background(), m, PlanOptions{}); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got := driver.probeCalls.Load(); got != 3 {
		t.Errorf("expected 3 probes, got %d", got)
	}
}

func TestPlanner_ComputePlan_OnlyFilterSkipsOtherKinds(t *testing.T) {
	pkg := &fakeDriver{kind: KindPackage, present: map[string]bool{}}
	link := &fakeDriver{kind: KindSymlink, present: map[string]bool{}}
	planner := NewPlanner(newTestRegistry(t, pkg, link), zerolog.Nop())

	m := &Manifest{Resources: []Resource{
		res(KindPackage, "git"),
		res(KindSymlink, "bin-link"),
	}}

	plan, err := planner.ComputePlan(context.Background(), m, PlanOptions{Only: []Kind{KindPackage}})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	byID := make(map[ResourceID]Action)
	for _, action := range plan.Actions {
		byID[action.ResourceID] = action
	}

	if byID["package/git"].Verb != VerbInstall {
		t.Errorf("expected selected kind to plan install, got %s", byID["package/git"].Verb)
	}
	if byID["symlink/bin-link"].Verb != VerbSkip {
		t.Errorf("expected unselected kind to plan skip, got %s", byID["symlink/bin-link"].Verb)
	}
	if byID["symlink/bin-link"].Rationale != "kind not selected" {
		t.Errorf("unexpected rationale: %s", byID["symlink/bin-link"].Rationale)
	}
}

func TestPlanner_ComputePlan_InvalidManifestYieldsNoPlan(t *testing.T) {
	driver := &fakeDriver{kind: KindPackage, present: map[string]bool{}}
	planner := NewPlanner(newTestRegistry(t, driver), zerolog.Nop())

	m := &Manifest{Resources: []Resource{
		res(KindPackage, "a", "package/b"),
		res(KindPackage, "b", "package/a"),
	}}

	plan, err := planner.ComputePlan(context.Background(), m, PlanOptions{})
	if err == nil {
		t.Fatal("expected error for cyclic manifest")
	}
	if !IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
	if plan != nil {
		t.Error("expected no plan on manifest error")
	}
	if got := driver.probeCalls.Load(); got != 0 {
		t.Errorf("expected no probes for invalid manifest, got %d", got)
	}
}

func TestPlanner_ComputePlan_MissingDriver(t *testing.T) {
	planner := NewPlanner(NewDriverRegistry(), zerolog.Nop())

	m := &Manifest{Resources: []Resource{
		res(KindPackage, "git"),
	}}

	_, err := planner.ComputePlan(context.Background(), m, PlanOptions{})
	if err == nil {
		t.Fatal("expected error when no driver is registered")
	}
	if !IsManifest(err) {
		t.Errorf("expected manifest error, got: %v", err)
	}
}
