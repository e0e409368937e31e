package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Engine compiles policies and evaluates them against plans.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		if err := e.compile(context.Background(), p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}

	return e, nil
}

// LoadPolicies loads additional .rego files from the given paths.
// Directories are walked recursively. File-loaded policies have error
// severity unless a violation says otherwise.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loaded := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat policy path %s: %w", path, err)
		}

		files := []string{path}
		if info.IsDir() {
			files = nil
			err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(p, ".rego") {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to walk policy directory %s: %w", path, err)
			}
		}

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read policy file %s: %w", file, err)
			}
			name := strings.TrimSuffix(filepath.Base(file), ".rego")
			p := Policy{
				Name:     name,
				Rego:     string(data),
				Severity: SeverityError,
			}
			if err := e.compile(ctx, p); err != nil {
				return fmt.Errorf("failed to compile policy %s: %w", file, err)
			}
			loaded++
		}
	}

	e.logger.Info().Int("count", loaded).Msg("policies loaded")
	return nil
}

// EvaluatePlan evaluates all policies against each action in the plan.
func (e *Engine) EvaluatePlan(ctx context.Context, plan *engine.Plan) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	var violations []Violation

	for _, cp := range e.policies {
		for i := range plan.Actions {
			action := &plan.Actions[i]
			input := actionInput{
				Kind:      action.Resource.Kind,
				Name:      action.Resource.Name,
				ID:        action.ResourceID,
				Verb:      action.Verb,
				Params:    action.Resource.Params,
				Rationale: action.Rationale,
			}

			found, err := e.evaluate(ctx, cp, input)
			if err != nil {
				return nil, fmt.Errorf("policy %s evaluation failed: %w", cp.policy.Name, err)
			}
			violations = append(violations, found...)
		}
	}

	allowed := true
	for i := range violations {
		if violations[i].Severity == SeverityError {
			allowed = false
			break
		}
	}

	e.logger.Debug().
		Str("plan_id", plan.ID).
		Int("violations", len(violations)).
		Dur("duration", time.Since(start)).
		Msg("plan policy evaluation completed")

	return &Result{
		Allowed:     allowed,
		Violations:  violations,
		EvaluatedAt: time.Now(),
	}, nil
}

func (e *Engine) evaluate(ctx context.Context, cp *compiledPolicy, input actionInput) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, e.toViolation(cp.policy, d, input))
			}
		}
	}
	return violations, nil
}

func (e *Engine) toViolation(p Policy, result interface{}, input actionInput) Violation {
	violation := Violation{
		Policy:     p.Name,
		ResourceID: input.ID,
		Severity:   p.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if res, ok := v["resource"].(string); ok {
			violation.ResourceID = engine.ResourceID(res)
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

func (e *Engine) compile(ctx context.Context, p Policy) error {
	query := fmt.Sprintf("data.%s.deny", packageName(p.Rego))

	r := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[p.Name] = &compiledPolicy{
		policy: p,
		query:  prepared,
	}
	return nil
}

// packageName extracts the package declaration from Rego source.
func packageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "ubuntusetup.policies"
}
