package stores

import (
	"context"
	"errors"
	"time"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// ErrRunNotFound is returned when a run ID is unknown to the store.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored summary of one execution.
type Run struct {
	ID          string               `json:"id"`
	Kind        engine.PlanKind      `json:"kind"`
	Status      engine.RunStatus     `json:"status"`
	Hostname    string               `json:"hostname,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	Summary     engine.ReportSummary `json:"summary"`
	Fatal       []string             `json:"fatal,omitempty"` // fatal error messages
}

// Duration returns the wall-clock time of the run.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// OperationRecord is one stored operation result.
type OperationRecord struct {
	RunID      string                 `json:"run_id"`
	Seq        int                    `json:"seq"`
	Operation  engine.Operation       `json:"operation"`
	Status     engine.OperationStatus `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	ErrorClass engine.ErrorClass      `json:"error_class,omitempty"`
	ErrorCode  string                 `json:"error_code,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	Duration   time.Duration          `json:"duration"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Kind   engine.PlanKind
	Status engine.RunStatus
	Limit  int
	Offset int
}

// Store defines the interface for the history layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Runs
	RecordReport(ctx context.Context, kind engine.PlanKind, hostname string, report *engine.ExecutionReport) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// Operation results
	ListOperations(ctx context.Context, runID string) ([]*OperationRecord, error)
	TargetHistory(ctx context.Context, subsystem, target string, limit int) ([]*OperationRecord, error)
}

var _ Store = (*SQLiteStore)(nil)
