package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Plan is the capability shared by every plan, single-subsystem or composite.
//
// Planning is pure: producing a Plan never mutates the system. Describe is a pure
// projection used for both preview and audit logging. Execute takes ownership of
// the plan; a plan can be executed at most once.
type Plan interface {
	// Describe lists the planned operations and an aggregate summary.
	Describe() Description

	// Execute performs the planned operations and reports their outcomes.
	// The returned error is reserved for misuse (re-execution); operation
	// failures are recorded in the report.
	Execute(ctx context.Context, ec *ExecContext) (*ExecutionReport, error)

	// IsEmpty returns true if the plan has no operations.
	IsEmpty() bool
}

// Applier performs the side effect behind a single operation.
// Adapters return a FatalExecutionError to stop the remainder of the plan.
type Applier interface {
	Apply(ctx context.Context, ec *ExecContext, op Operation) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, ec *ExecContext, op Operation) error

// Apply calls f.
func (f ApplierFunc) Apply(ctx context.Context, ec *ExecContext, op Operation) error {
	return f(ctx, ec, op)
}

// Prechecker is implemented by appliers that re-validate a destructive operation
// right before performing it. A non-nil error skips the operation.
type Prechecker interface {
	Precheck(ctx context.Context, ec *ExecContext, op Operation) error
}

// Observer receives execution callbacks for metrics and tracing.
type Observer interface {
	// OperationStarted is called before an operation runs. The returned context
	// is passed to the applier.
	OperationStarted(ctx context.Context, op Operation) context.Context

	// OperationFinished is called with the operation's outcome.
	OperationFinished(ctx context.Context, result OperationResult)
}

// ExecContext carries per-invocation execution state. Nothing in the engine is
// process-wide; everything an execution needs travels here.
type ExecContext struct {
	// Logger is the logger for this invocation.
	Logger zerolog.Logger

	// Backend names the active package-management backend (e.g., "dnf", "rpm-ostree").
	Backend string

	// MaxParallel bounds how many sub-plans of a composite run at once.
	// Values below 2 mean sequential execution.
	MaxParallel int

	// Observer receives per-operation callbacks. May be nil.
	Observer Observer
}

// NewExecContext creates an execution context with a disabled logger.
func NewExecContext() *ExecContext {
	return &ExecContext{Logger: zerolog.Nop(), MaxParallel: 1}
}

// observer returns the configured observer or a no-op one.
func (ec *ExecContext) observer() Observer {
	if ec == nil || ec.Observer == nil {
		return nopObserver{}
	}
	return ec.Observer
}

type nopObserver struct{}

func (nopObserver) OperationStarted(ctx context.Context, _ Operation) context.Context { return ctx }
func (nopObserver) OperationFinished(context.Context, OperationResult)                {}
