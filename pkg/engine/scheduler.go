package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// runSubPlans executes plans and returns their reports indexed like plans.
//
// With MaxParallel below two the plans run one after another. Otherwise up to
// MaxParallel sub-plans run at once; this is only safe because every sub-plan
// touches a different subsystem. Operations inside a sub-plan stay sequential.
// A sub-plan whose Execute errors yields a report holding only that fatal error.
func runSubPlans(ctx context.Context, ec *ExecContext, plans []Plan) []*ExecutionReport {
	reports := make([]*ExecutionReport, len(plans))

	if ec.MaxParallel < 2 || len(plans) < 2 {
		for i, p := range plans {
			reports[i] = runSubPlan(ctx, ec, i, p)
		}
		return reports
	}

	workerCount := ec.MaxParallel
	if len(plans) < workerCount {
		workerCount = len(plans)
	}

	// Sub-plans are independent; one failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(workerCount)
	for i, p := range plans {
		g.Go(func() error {
			reports[i] = runSubPlan(ctx, ec, i, p)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func runSubPlan(ctx context.Context, ec *ExecContext, i int, p Plan) *ExecutionReport {
	started := time.Now()
	report, err := p.Execute(ctx, ec)
	if err == nil {
		return report
	}

	fatal := NewFatalExecutionError(fmt.Sprintf("sub-plan %d could not run", i), err)
	if op, ok := p.(*OperationPlan); ok {
		fatal = fatal.WithSubsystem(op.Subsystem())
	}
	ec.Logger.Error().Err(err).Int("sub_plan", i).Msg("Sub-plan failed to execute")
	return &ExecutionReport{
		StartedAt:   started,
		CompletedAt: time.Now(),
		Fatal:       []*EngineError{fatal},
	}
}
