package policy

import (
	"time"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is reported but does not block execution.
	SeverityWarning Severity = "warning"

	// SeverityError blocks execution.
	SeverityError Severity = "error"

	// SeverityCritical blocks execution.
	SeverityCritical Severity = "critical"
)

// Blocks returns true if a violation of this severity denies the plan.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a named Rego module.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego module. It must define a "deny" set.
	Rego string `json:"rego"`

	// Severity is the default severity of the policy's violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy    string   `json:"policy" yaml:"policy"`
	Subsystem string   `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
	Target    string   `json:"target,omitempty" yaml:"target,omitempty"`
	Message   string   `json:"message" yaml:"message"`
	Severity  Severity `json:"severity" yaml:"severity"`
}

// Result is the outcome of evaluating a plan.
type Result struct {
	// Allowed is false if any blocking violation was found.
	Allowed bool `json:"allowed" yaml:"allowed"`

	// Violations are the blocking violations.
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`

	// Warnings are the non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of evaluated policies, in evaluation order.
	EvaluatedPolicies []string `json:"evaluated_policies" yaml:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Err returns nil when the plan is allowed, otherwise a permanent engine error
// coded POLICY_DENIED that lists the violations.
func (r *Result) Err() error {
	if r == nil || r.Allowed {
		return nil
	}
	messages := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		messages = append(messages, v.Policy+": "+v.Message)
	}
	return engine.NewPermanentError("plan denied by policy", nil).
		WithCode(engine.ErrCodePolicyDenied).
		WithDetail("violations", messages)
}

// Params are the configured values policies read from input.params.
type Params struct {
	// Protected are glob patterns of targets that must not be removed or reset.
	Protected []string `json:"protected"`

	// MaxRemovals bounds the removals of one plan. Zero means no limit.
	MaxRemovals int `json:"max_removals"`
}

// Input is the document policies are evaluated against.
type Input struct {
	Kind       engine.PlanKind    `json:"kind"`
	Operations []engine.Operation `json:"operations"`
	Params     Params             `json:"params"`
}
