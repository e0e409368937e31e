package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// defaultMaxRetries bounds retries for network-sourced actions:
	// 1 initial attempt plus up to 3 retries.
	defaultMaxRetries = 3

	// defaultBackoffBase is the first retry delay; it doubles per
	// attempt.
	defaultBackoffBase = 1 * time.Second

	// defaultActionTimeout bounds a single apply attempt.
	defaultActionTimeout = 10 * time.Minute
)

// Observer receives execution records as they are produced. Used for
// metrics and persistence; observers must not block.
type Observer interface {
	// OnRecord is called once per action, after its outcome is terminal.
	OnRecord(record ExecutionRecord)
}

// Executor applies a plan's actions in dependency order with per-action
// retry, per-kind exclusive locking, and dependency-aware failure
// isolation. A single resource failure never aborts the run; only its
// dependent subtree is skipped.
type Executor struct {
	drivers *DriverRegistry
	logger  zerolog.Logger

	// MaxParallel bounds concurrent applies of independent resources.
	// Zero or one means strictly sequential execution.
	MaxParallel int

	// BackoffBase is the first retry delay. Zero means the default.
	// Exposed so tests can shrink it.
	BackoffBase time.Duration

	// ActionTimeout bounds a single apply attempt. Zero means the
	// default.
	ActionTimeout time.Duration

	observers []Observer

	mu       sync.Mutex
	outcomes map[ResourceID]Outcome
	records  []ExecutionRecord

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewExecutor creates an executor over the given driver registry.
func NewExecutor(drivers *DriverRegistry, logger zerolog.Logger) *Executor {
	return &Executor{
		drivers: drivers,
		logger:  logger.With().Str("component", "executor").Logger(),
		locks:   make(map[string]*sync.Mutex),
	}
}

// AddObserver registers an observer for execution records.
func (e *Executor) AddObserver(obs Observer) {
	e.observers = append(e.observers, obs)
}

// Execute applies the plan and returns the run with one record per
// planned action. The returned error is reserved for context
// cancellation; per-resource failures are reported through the records.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Run, error) {
	if plan == nil || plan.Graph == nil {
		return nil, NewPermanentError("plan has no dependency graph", nil)
	}

	run := &Run{
		ID:        uuid.New().String(),
		PlanID:    plan.ID,
		StartedAt: time.Now(),
	}

	e.mu.Lock()
	e.outcomes = make(map[ResourceID]Outcome, len(plan.Actions))
	e.records = make([]ExecutionRecord, 0, len(plan.Actions))
	e.mu.Unlock()

	actionsByID := make(map[ResourceID]Action, len(plan.Actions))
	for _, action := range plan.Actions {
		actionsByID[action.ResourceID] = action
	}

	cancelled := false
	for _, level := range plan.Graph.Levels {
		// Cancellation is checked between actions, never mid-action: an
		// in-flight apply runs to completion or its own timeout.
		if ctx.Err() != nil {
			cancelled = true
		}

		actions := make([]Action, 0, len(level))
		for _, id := range level {
			actions = append(actions, actionsByID[id])
		}

		if cancelled {
			for _, action := range actions {
				e.record(action, ExecutionRecord{
					ResourceID:  action.ResourceID,
					Verb:        action.Verb,
					Outcome:     OutcomeSkipped,
					ErrorDetail: "run cancelled",
					StartedAt:   time.Now(),
				})
			}
			continue
		}

		e.executeLevel(ctx, plan.Graph, actions)
	}

	run.CompletedAt = time.Now()
	run.Duration = run.CompletedAt.Sub(run.StartedAt)

	e.mu.Lock()
	run.Records = append(run.Records, e.records...)
	e.mu.Unlock()

	run.Status = runStatus(run.Records, cancelled)
	return run, nil
}

// executeLevel applies all actions of one level on a bounded worker
// pool. Resources within a level have no dependency relation, so their
// relative order carries no guarantee.
func (e *Executor) executeLevel(ctx context.Context, graph *Graph, actions []Action) {
	workers := e.MaxParallel
	if workers <= 0 {
		workers = 1
	}
	if len(actions) < workers {
		workers = len(actions)
	}

	queue := make(chan Action, len(actions))
	for _, action := range actions {
		queue <- action
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range queue {
				e.executeAction(ctx, graph, action)
			}
		}()
	}
	wg.Wait()
}

// executeAction drives one action to a terminal outcome and records it.
func (e *Executor) executeAction(ctx context.Context, graph *Graph, action Action) {
	started := time.Now()

	if failedDep, ok := e.failedDependency(graph, action.ResourceID); ok {
		e.record(action, ExecutionRecord{
			ResourceID:  action.ResourceID,
			Verb:        action.Verb,
			Outcome:     OutcomeDependencySkipped,
			ErrorDetail: fmt.Sprintf("dependency %s failed", failedDep),
			StartedAt:   started,
			Duration:    time.Since(started),
		})
		return
	}

	if action.Verb == VerbSkip {
		e.record(action, ExecutionRecord{
			ResourceID:  action.ResourceID,
			Verb:        action.Verb,
			Outcome:     OutcomeSkipped,
			ErrorDetail: action.Rationale,
			StartedAt:   started,
			Duration:    time.Since(started),
		})
		return
	}

	driver, err := e.drivers.Get(action.Resource.Kind)
	if err != nil {
		e.record(action, ExecutionRecord{
			ResourceID:  action.ResourceID,
			Verb:        action.Verb,
			Outcome:     OutcomeFailed,
			ErrorDetail: err.Error(),
			Attempts:    1,
			StartedAt:   started,
			Duration:    time.Since(started),
		})
		return
	}

	outcome, attempts, err := e.applyWithRetry(ctx, driver, action)

	record := ExecutionRecord{
		ResourceID: action.ResourceID,
		Verb:       action.Verb,
		Outcome:    outcome,
		Attempts:   attempts,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if err != nil {
		record.ErrorDetail = err.Error()
	}
	e.record(action, record)
}

// applyWithRetry runs the driver apply with exponential backoff for
// transient failures of network-sourced kinds. Integrity and permanent
// failures are terminal on the first occurrence.
func (e *Executor) applyWithRetry(ctx context.Context, driver Driver, action Action) (Outcome, int, error) {
	maxRetries := 0
	if driver.Retryable() {
		maxRetries = defaultMaxRetries
	}
	backoff := e.BackoffBase
	if backoff <= 0 {
		backoff = defaultBackoffBase
	}
	timeout := e.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}

	var outcome Outcome
	var err error
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		outcome, err = e.applyLocked(ctx, driver, action, timeout)
		if err == nil {
			return outcome, attempts, nil
		}
		if !IsRetryable(err) || attempt == maxRetries {
			break
		}

		delay := backoff << attempt
		e.logger.Warn().
			Str("resource_id", string(action.ResourceID)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(err).
			Msg("transient failure, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return OutcomeFailed, attempts, err
		}
	}

	return OutcomeFailed, attempts, err
}

// applyLocked holds the driver's exclusive lock (if any) for the span
// of one apply attempt. Release is guaranteed on success and failure.
func (e *Executor) applyLocked(ctx context.Context, driver Driver, action Action, timeout time.Duration) (Outcome, error) {
	if key := driver.LockKey(); key != "" {
		lock := e.lockFor(key)
		lock.Lock()
		defer lock.Unlock()
	}

	// Run cancellation takes effect between actions only: an apply
	// already in flight runs to completion or its own timeout, so a
	// half-finished package install is never killed mid-command.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return driver.Apply(attemptCtx, action)
}

// lockFor returns the process-wide mutex for a lock key, creating it on
// first use. All apt-backed drivers share one key and therefore one
// lock.
func (e *Executor) lockFor(key string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// failedDependency reports whether any dependency of id reached a
// failure outcome, directly or through its own skipped dependencies.
func (e *Executor) failedDependency(graph *Graph, id ResourceID) (ResourceID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, dep := range graph.Dependencies[id] {
		if e.outcomes[dep].IsFailure() {
			return dep, true
		}
	}
	return "", false
}

// record appends an execution record, emits the real-time log line, and
// notifies observers. Records are immutable once written.
func (e *Executor) record(action Action, record ExecutionRecord) {
	e.mu.Lock()
	e.outcomes[record.ResourceID] = record.Outcome
	e.records = append(e.records, record)
	e.mu.Unlock()

	evt := e.logger.Info()
	if record.Outcome == OutcomeFailed {
		evt = e.logger.Error()
	}
	evt.
		Str("resource_id", string(record.ResourceID)).
		Str("verb", string(record.Verb)).
		Str("outcome", string(record.Outcome)).
		Dur("duration", record.Duration)
	if record.ErrorDetail != "" {
		evt = evt.Str("detail", record.ErrorDetail)
	}
	evt.Msg("action finished")

	for _, obs := range e.observers {
		obs.OnRecord(record)
	}
}

// runStatus derives the overall run status from the record set.
func runStatus(records []ExecutionRecord, cancelled bool) RunStatus {
	if cancelled {
		return RunStatusCancelled
	}
	for _, r := range records {
		if r.Outcome.IsFailure() {
			return RunStatusFailed
		}
	}
	return RunStatusSucceeded
}
