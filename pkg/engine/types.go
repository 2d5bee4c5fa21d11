package engine

import (
	"fmt"
	"strings"
	"time"
)

// Operation is one intended change: a verb applied to a target identity.
type Operation struct {
	// Subsystem is the subsystem the operation belongs to (e.g., "flatpak").
	Subsystem string `json:"subsystem" yaml:"subsystem"`

	// Verb is the kind of change.
	Verb Verb `json:"verb" yaml:"verb"`

	// Target is the resource identity the operation acts on.
	Target string `json:"target" yaml:"target"`

	// Detail is optional human-readable context (e.g., "Adwaita -> Dark").
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// String renders the operation as "verb target (detail)".
func (o Operation) String() string {
	if o.Detail == "" {
		return fmt.Sprintf("%s %s", o.Verb, o.Target)
	}
	return fmt.Sprintf("%s %s (%s)", o.Verb, o.Target, o.Detail)
}

// Description is the pure projection of a plan used for preview and audit logging.
type Description struct {
	// Operations lists every planned operation in execution order.
	Operations []Operation `json:"operations" yaml:"operations"`

	// Summary is a one-line-per-subsystem aggregate.
	Summary string `json:"summary" yaml:"summary"`
}

// Len returns the number of operations.
func (d Description) Len() int {
	return len(d.Operations)
}

// CountByVerb counts operations per verb.
func (d Description) CountByVerb() map[Verb]int {
	counts := make(map[Verb]int)
	for _, op := range d.Operations {
		counts[op.Verb]++
	}
	return counts
}

// summarize builds the aggregate line for a single subsystem, e.g.
// "flatpak: 2 install, 1 remove". Verb order follows first appearance.
func summarize(subsystem string, ops []Operation) string {
	if len(ops) == 0 {
		return fmt.Sprintf("%s: nothing to do", subsystem)
	}
	order := make([]Verb, 0)
	counts := make(map[Verb]int)
	for _, op := range ops {
		if _, ok := counts[op.Verb]; !ok {
			order = append(order, op.Verb)
		}
		counts[op.Verb]++
	}
	parts := make([]string, 0, len(order))
	for _, verb := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[verb], verb))
	}
	return fmt.Sprintf("%s: %s", subsystem, strings.Join(parts, ", "))
}

// OperationResult is the outcome of executing one operation.
type OperationResult struct {
	// Operation is the operation that was attempted.
	Operation Operation `json:"operation"`

	// Status is the terminal status of the operation.
	Status OperationStatus `json:"status"`

	// Error is the classified failure, if any.
	Error *EngineError `json:"error,omitempty"`

	// Reason is a human-readable explanation for failures and skips.
	Reason string `json:"reason,omitempty"`

	// StartedAt is when the operation started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the operation took.
	Duration time.Duration `json:"duration"`
}

// ReportSummary provides statistics about an execution.
type ReportSummary struct {
	// Total is the total number of operations.
	Total int `json:"total"`

	// Succeeded is the number of operations that succeeded.
	Succeeded int `json:"succeeded"`

	// Failed is the number of operations that failed.
	Failed int `json:"failed"`

	// Skipped is the number of operations that never ran.
	Skipped int `json:"skipped"`
}

// ExecutionReport accumulates per-operation outcomes for one execution.
// It is returned to the caller once complete and is not modified afterwards.
type ExecutionReport struct {
	// ID is the unique identifier of this execution.
	ID string `json:"id"`

	// PlanIDs lists the plans that were executed, in order.
	PlanIDs []string `json:"plan_ids"`

	// Status is the overall outcome.
	Status RunStatus `json:"status"`

	// StartedAt is when execution started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when execution finished.
	CompletedAt time.Time `json:"completed_at"`

	// Results lists every operation outcome in execution order.
	Results []OperationResult `json:"results"`

	// Fatal lists the fatal errors that stopped a plan, reported apart from per-item failures.
	Fatal []*EngineError `json:"fatal,omitempty"`

	// Summary provides aggregate counts.
	Summary ReportSummary `json:"summary"`
}

// Failures returns the failed operations, each with its identity and reason.
func (r *ExecutionReport) Failures() []OperationResult {
	failed := make([]OperationResult, 0)
	for _, res := range r.Results {
		if res.Status == OperationStatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// HasFatal returns true if any plan was stopped by a fatal error.
func (r *ExecutionReport) HasFatal() bool {
	return len(r.Fatal) > 0
}

// Duration returns the wall-clock time of the execution.
func (r *ExecutionReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// computeSummary counts results by status.
func computeSummary(results []OperationResult) ReportSummary {
	summary := ReportSummary{Total: len(results)}
	for _, res := range results {
		switch res.Status {
		case OperationStatusSucceeded:
			summary.Succeeded++
		case OperationStatusFailed:
			summary.Failed++
		case OperationStatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// computeRunStatus derives the overall status the way a run is judged:
// any fatal error or no success at all is a failure, mixed outcomes are partial.
func computeRunStatus(summary ReportSummary, fatal int) RunStatus {
	switch {
	case summary.Total == 0 && fatal == 0:
		return RunStatusEmpty
	case fatal > 0 && summary.Succeeded == 0:
		return RunStatusFailed
	case summary.Failed == 0 && summary.Skipped == 0 && fatal == 0:
		return RunStatusSucceeded
	case summary.Succeeded == 0:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// MergeReports combines reports in the given order into a new report.
// The inputs are left untouched.
func MergeReports(id string, reports ...*ExecutionReport) *ExecutionReport {
	merged := &ExecutionReport{
		ID:      id,
		PlanIDs: make([]string, 0, len(reports)),
		Results: make([]OperationResult, 0),
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		if merged.StartedAt.IsZero() || r.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = r.StartedAt
		}
		if r.CompletedAt.After(merged.CompletedAt) {
			merged.CompletedAt = r.CompletedAt
		}
		merged.PlanIDs = append(merged.PlanIDs, r.PlanIDs...)
		merged.Results = append(merged.Results, r.Results...)
		merged.Fatal = append(merged.Fatal, r.Fatal...)
	}
	if merged.StartedAt.IsZero() {
		merged.StartedAt = time.Now()
		merged.CompletedAt = merged.StartedAt
	}
	merged.Summary = computeSummary(merged.Results)
	merged.Status = computeRunStatus(merged.Summary, len(merged.Fatal))
	return merged
}
