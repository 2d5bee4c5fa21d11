package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Engine compiles policies and evaluates plan descriptions against them.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	order    []string
	params   Params
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its prepared deny query.
type compiledPolicy struct {
	policy   Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates an engine with the built-in policies.
func NewEngine(logger zerolog.Logger, params Params) (*Engine, error) {
	if params.Protected == nil {
		params.Protected = []string{}
	}
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		params:   params,
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		if err := e.AddPolicy(context.Background(), p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}
	return e, nil
}

// AddPolicy compiles p and adds it, replacing a policy of the same name.
func (e *Engine) AddPolicy(ctx context.Context, p Policy) error {
	module, err := ast.ParseModule(p.Name+".rego", p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", p.Name, err)
	}

	query, err := rego.New(
		rego.Query(module.Package.Path.String()+".deny"),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", p.Name, err)
	}

	if p.Severity == "" {
		p.Severity = SeverityWarning
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.policies[p.Name]; !exists {
		e.order = append(e.order, p.Name)
	}
	e.policies[p.Name] = &compiledPolicy{policy: p, query: query, compiled: time.Now()}

	e.logger.Debug().Str("policy", p.Name).Msg("Policy compiled successfully")
	return nil
}

// LoadDir loads and adds every policy file in dir.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	policies, err := NewLoader(e.logger).LoadDir(dir)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := e.AddPolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate checks a plan description against every enabled policy. A policy
// that fails to evaluate is an error; the plan must then be treated as denied.
func (e *Engine) Evaluate(ctx context.Context, kind engine.PlanKind, desc engine.Description) (*Result, error) {
	start := time.Now()

	input, err := toInput(Input{Kind: kind, Operations: desc.Operations, Params: e.params})
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true, EvaluatedPolicies: make([]string, 0, len(e.order))}
	for _, name := range e.order {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := evaluatePolicy(ctx, cp, input)
		if err != nil {
			return nil, err
		}
		for _, v := range violations {
			if v.Severity.Blocks() {
				result.Allowed = false
				result.Violations = append(result.Violations, v)
			} else {
				result.Warnings = append(result.Warnings, v)
			}
		}
	}
	result.Duration = time.Since(start)

	e.logger.Debug().
		Str("kind", string(kind)).
		Bool("allowed", result.Allowed).
		Int("violations", len(result.Violations)).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration).
		Msg("Plan evaluated")
	return result, nil
}

// ListPolicies returns the policies in evaluation order.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.policies[name].policy)
	}
	return out
}

// EnablePolicy enables a policy.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	return nil
}

func evaluatePolicy(ctx context.Context, cp *compiledPolicy, input interface{}) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy %s evaluation error: %w", cp.policy.Name, err)
	}

	var violations []Violation
	for _, r := range results {
		if len(r.Expressions) == 0 {
			continue
		}
		denySet, ok := r.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}
	return violations, nil
}

// createViolation converts one deny element.
func createViolation(p Policy, value interface{}) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}
	switch d := value.(type) {
	case string:
		v.Message = d
	case map[string]interface{}:
		if msg, ok := d["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := d["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if sub, ok := d["subsystem"].(string); ok {
			v.Subsystem = sub
		}
		if target, ok := d["target"].(string); ok {
			v.Target = target
		}
	default:
		v.Message = fmt.Sprintf("%v", value)
	}
	return v
}

// toInput converts in to plain JSON values.
func toInput(in Input) (interface{}, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return out, nil
}
