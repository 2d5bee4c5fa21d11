package engine

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PlanKind distinguishes the direction of a plan.
type PlanKind string

const (
	// PlanKindApply moves the system towards the manifest.
	PlanKindApply PlanKind = "apply"

	// PlanKindCapture moves the manifest towards the system.
	PlanKindCapture PlanKind = "capture"
)

// OperationPlan is the plan of a single subsystem: an ordered list of operations
// and the applier that carries them out.
//
// Operations inside one plan run strictly in order, because later operations may
// depend on earlier ones (a repository add before an install from it).
type OperationPlan struct {
	id         string
	subsystem  string
	kind       PlanKind
	createdAt  time.Time
	operations []Operation
	applier    Applier
	consumed   atomic.Bool
}

// NewOperationPlan creates a plan. The operations slice is copied.
func NewOperationPlan(subsystem string, kind PlanKind, ops []Operation, applier Applier) *OperationPlan {
	copied := make([]Operation, len(ops))
	copy(copied, ops)
	for i := range copied {
		if copied[i].Subsystem == "" {
			copied[i].Subsystem = subsystem
		}
	}
	return &OperationPlan{
		id:         uuid.New().String(),
		subsystem:  subsystem,
		kind:       kind,
		createdAt:  time.Now(),
		operations: copied,
		applier:    applier,
	}
}

// ID returns the plan identifier.
func (p *OperationPlan) ID() string { return p.id }

// Subsystem returns the subsystem the plan belongs to.
func (p *OperationPlan) Subsystem() string { return p.subsystem }

// Kind returns the plan direction.
func (p *OperationPlan) Kind() PlanKind { return p.kind }

// IsEmpty returns true if the plan has no operations.
func (p *OperationPlan) IsEmpty() bool {
	return len(p.operations) == 0
}

// Describe lists the planned operations.
func (p *OperationPlan) Describe() Description {
	ops := make([]Operation, len(p.operations))
	copy(ops, p.operations)
	return Description{
		Operations: ops,
		Summary:    summarize(p.subsystem, ops),
	}
}

// MarshalJSON serializes the plan's identity and operations.
func (p *OperationPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string      `json:"id"`
		Subsystem  string      `json:"subsystem"`
		Kind       PlanKind    `json:"kind"`
		CreatedAt  time.Time   `json:"created_at"`
		Operations []Operation `json:"operations"`
	}{p.id, p.subsystem, p.kind, p.createdAt, p.operations})
}

// Consumed reports whether Execute has already been called.
func (p *OperationPlan) Consumed() bool { return p.consumed.Load() }

// Execute runs every operation in order.
//
// Non-fatal failures are recorded and execution continues. A fatal failure, or a
// cancelled context, marks every remaining operation as skipped and is recorded in
// the report's Fatal list. Completed operations are never rolled back.
func (p *OperationPlan) Execute(ctx context.Context, ec *ExecContext) (*ExecutionReport, error) {
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, ErrPlanConsumed
	}
	if ec == nil {
		ec = NewExecContext()
	}

	logger := ec.Logger.With().
		Str("subsystem", p.subsystem).
		Str("plan_id", p.id).
		Logger()
	obs := ec.observer()

	report := &ExecutionReport{
		ID:        uuid.New().String(),
		PlanIDs:   []string{p.id},
		StartedAt: time.Now(),
		Results:   make([]OperationResult, 0, len(p.operations)),
	}

	var fatal *EngineError
	for _, op := range p.operations {
		if fatal == nil && ctx.Err() != nil {
			fatal = NewFatalExecutionError("execution cancelled", ctx.Err()).WithSubsystem(p.subsystem)
			report.Fatal = append(report.Fatal, fatal)
		}
		if fatal != nil {
			report.Results = append(report.Results, OperationResult{
				Operation: op,
				Status:    OperationStatusSkipped,
				Reason:    "skipped: " + fatal.Message,
				StartedAt: time.Now(),
			})
			continue
		}

		result := p.runOperation(ctx, ec, obs, op)
		if result.Error != nil && result.Error.Class == ErrorClassFatal {
			fatal = result.Error
			report.Fatal = append(report.Fatal, fatal)
		}

		event := logger.Info()
		if result.Status == OperationStatusFailed {
			event = logger.Error().Str("reason", result.Reason)
		} else if result.Status == OperationStatusSkipped {
			event = logger.Warn().Str("reason", result.Reason)
		}
		event.Str("verb", string(op.Verb)).
			Str("target", op.Target).
			Str("status", string(result.Status)).
			Dur("duration", result.Duration).
			Msg("Operation finished")

		report.Results = append(report.Results, result)
	}

	report.CompletedAt = time.Now()
	report.Summary = computeSummary(report.Results)
	report.Status = computeRunStatus(report.Summary, len(report.Fatal))
	return report, nil
}

// runOperation performs one operation, including the optional precondition re-check.
func (p *OperationPlan) runOperation(ctx context.Context, ec *ExecContext, obs Observer, op Operation) OperationResult {
	start := time.Now()
	opCtx := obs.OperationStarted(ctx, op)

	result := OperationResult{Operation: op, StartedAt: start}

	if pc, ok := p.applier.(Prechecker); ok && op.Verb.IsDestructive() {
		if err := pc.Precheck(opCtx, ec, op); err != nil {
			result.Status = OperationStatusSkipped
			result.Reason = "precondition no longer holds: " + err.Error()
			result.Duration = time.Since(start)
			obs.OperationFinished(opCtx, result)
			return result
		}
	}

	var err error
	if p.applier == nil {
		err = NewPermanentError("plan has no applier", nil).WithCode(ErrCodeInternal)
	} else {
		err = p.applier.Apply(opCtx, ec, op)
	}

	result.Duration = time.Since(start)
	if err != nil {
		classified := AsEngineError(err)
		result.Status = OperationStatusFailed
		result.Error = &EngineError{
			Class:     classified.Class,
			Message:   classified.Message,
			Code:      classified.Code,
			Subsystem: p.subsystem,
			Target:    op.Target,
			Err:       classified.Err,
			Details:   classified.Details,
		}
		result.Reason = err.Error()
	} else {
		result.Status = OperationStatusSucceeded
	}

	obs.OperationFinished(opCtx, result)
	return result
}
