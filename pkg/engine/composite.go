package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// CompositePlan aggregates differently-typed sub-plans behind one handle, so that
// "apply everything" or "capture everything" can be described and executed without
// knowing each subsystem's concrete plan.
//
// Sub-plans keep their insertion order for both Describe and Execute. Callers insert
// them in canonical subsystem order, which makes output reproducible across runs.
type CompositePlan struct {
	id       string
	plans    []Plan
	consumed atomic.Bool
}

// NewComposite builds a composite plan. Nil and empty sub-plans are dropped here,
// so IsEmpty is a constant-time check.
func NewComposite(plans ...Plan) *CompositePlan {
	kept := make([]Plan, 0, len(plans))
	for _, p := range plans {
		if p == nil || p.IsEmpty() {
			continue
		}
		kept = append(kept, p)
	}
	return &CompositePlan{
		id:    uuid.New().String(),
		plans: kept,
	}
}

// ID returns the composite plan identifier.
func (c *CompositePlan) ID() string { return c.id }

// Len returns the number of non-empty sub-plans.
func (c *CompositePlan) Len() int { return len(c.plans) }

// IsEmpty returns true if no sub-plan has any operation.
func (c *CompositePlan) IsEmpty() bool {
	return len(c.plans) == 0
}

// Describe concatenates sub-plan descriptions in insertion order.
func (c *CompositePlan) Describe() Description {
	desc := Description{Operations: make([]Operation, 0)}
	summaries := make([]string, 0, len(c.plans))
	for _, p := range c.plans {
		sub := p.Describe()
		desc.Operations = append(desc.Operations, sub.Operations...)
		summaries = append(summaries, sub.Summary)
	}
	if len(summaries) == 0 {
		desc.Summary = "nothing to do"
	} else {
		desc.Summary = strings.Join(summaries, "\n")
	}
	return desc
}

// MarshalJSON serializes the composite as its id plus sub-plans.
func (c *CompositePlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    string `json:"id"`
		Plans []Plan `json:"plans"`
	}{c.id, c.plans})
}

// Consumed reports whether Execute has already been called.
func (c *CompositePlan) Consumed() bool { return c.consumed.Load() }

// consumable is implemented by plans that refuse a second execution.
type consumable interface {
	Consumed() bool
}

// Execute runs the sub-plans and merges their reports in insertion order.
// Sub-plans run sequentially unless ec.MaxParallel is greater than one.
//
// Execution is refused up front when any sub-plan was already executed. A
// sub-plan that still fails to run is recorded as a fatal error in the merged
// report; the reports of the other sub-plans are kept.
func (c *CompositePlan) Execute(ctx context.Context, ec *ExecContext) (*ExecutionReport, error) {
	for i, p := range c.plans {
		if cp, ok := p.(consumable); ok && cp.Consumed() {
			return nil, fmt.Errorf("sub-plan %d: %w", i, ErrPlanConsumed)
		}
	}
	if !c.consumed.CompareAndSwap(false, true) {
		return nil, ErrPlanConsumed
	}
	if ec == nil {
		ec = NewExecContext()
	}

	reports := runSubPlans(ctx, ec, c.plans)

	merged := MergeReports(uuid.New().String(), reports...)
	ec.Logger.Info().
		Str("plan_id", c.id).
		Str("status", string(merged.Status)).
		Int("succeeded", merged.Summary.Succeeded).
		Int("failed", merged.Summary.Failed).
		Int("skipped", merged.Summary.Skipped).
		Msg("Composite plan executed")
	return merged, nil
}
