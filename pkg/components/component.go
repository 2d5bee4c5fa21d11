package components

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

// Component is the contract every subsystem implements. R is the subsystem's
// resource type, M its manifest document and F its capture filter.
//
// ScanSystem and LoadManifest are read-only and may be called any number of times.
// Diff is pure. Capture goes the other way, building a manifest from live items;
// subsystems whose live state is derived from the manifest return false.
type Component[R engine.Resource, M any, F any] interface {
	Name() string
	ScanSystem(ctx context.Context) ([]R, error)
	LoadManifest(ctx context.Context) (M, error)
	ManifestItems(m M) []R
	Diff(system []R, m M) engine.DriftReport[R]
	SupportsCapture() bool
	Capture(system []R, filter F) (*M, bool)
}

// NoFilter is the capture filter of subsystems that capture everything.
type NoFilter struct{}

// observe scans the system and loads the manifest of c.
func observe[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F]) ([]R, M, error) {
	var empty M

	ic := telemetry.StartOperation(ctx, "scan", attribute.String("subsystem", c.Name()))
	system, err := c.ScanSystem(ic.Ctx)
	if err != nil && !engine.IsScanError(err) {
		err = engine.NewScanError("scan failed", err).WithSubsystem(c.Name())
	}
	ic.End(err)
	if err != nil {
		return nil, empty, err
	}

	m, err := c.LoadManifest(ctx)
	if err != nil {
		return nil, empty, fmt.Errorf("loading %s manifest: %w", c.Name(), err)
	}
	return system, m, nil
}

// driftOf computes the drift of c.
func driftOf[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F]) (engine.DriftReport[R], M, error) {
	system, m, err := observe(ctx, c)
	if err != nil {
		return engine.DriftReport[R]{}, m, err
	}
	return c.Diff(system, m), m, nil
}

// statusOf returns the drift counts of c.
func statusOf[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F]) (engine.DriftCounts, error) {
	report, _, err := driftOf(ctx, c)
	if err != nil {
		return engine.DriftCounts{}, err
	}
	return report.Counts(), nil
}

// applyWiring describes how a component turns drift into an apply plan.
type applyWiring[R engine.Resource, M any] struct {
	mapper   engine.OperationMapper[R]
	preamble func(ctx context.Context, m M) ([]engine.Operation, error)
	applier  engine.Applier
}

// planApply builds the apply plan of c.
func planApply[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F], w applyWiring[R, M], prune bool) (*engine.OperationPlan, error) {
	ic := telemetry.StartOperation(ctx, "plan", attribute.String("subsystem", c.Name()), attribute.String("kind", "apply"))
	report, m, err := driftOf(ic.Ctx, c)
	if err != nil {
		ic.End(err)
		return nil, err
	}

	opts := engine.ApplyOptions{Prune: prune}
	if w.preamble != nil {
		opts.Preamble, err = w.preamble(ic.Ctx, m)
		if err != nil {
			ic.End(err)
			return nil, err
		}
	}

	ops := engine.BuildApplyOperations(report, w.mapper, opts)
	ic.End(nil)
	return engine.NewOperationPlan(c.Name(), engine.PlanKindApply, ops, w.applier), nil
}

// planCapture builds the capture plan of c: live items that are untracked, or whose
// state differs from the manifest, are recorded in the user layer by persist.
func planCapture[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F], filter F, userFile string, persist func(ctx context.Context, items []R) error) (*engine.OperationPlan, error) {
	if !c.SupportsCapture() {
		return engine.NewOperationPlan(c.Name(), engine.PlanKindCapture, nil, nil), nil
	}

	ic := telemetry.StartOperation(ctx, "plan", attribute.String("subsystem", c.Name()), attribute.String("kind", "capture"))
	system, m, err := observe(ic.Ctx, c)
	if err != nil {
		ic.End(err)
		return nil, err
	}
	report := c.Diff(system, m)

	pending := make(map[string]struct{}, len(report.Untracked)+len(report.ToUpdate))
	for _, r := range report.Untracked {
		pending[r.ResourceID()] = struct{}{}
	}
	for _, p := range report.ToUpdate {
		pending[p.Current.ResourceID()] = struct{}{}
	}

	var items []R
	if captured, ok := c.Capture(system, filter); ok && captured != nil {
		for _, r := range c.ManifestItems(*captured) {
			if _, ok := pending[r.ResourceID()]; ok {
				items = append(items, r)
			}
		}
	}
	ic.End(nil)

	ops := engine.BuildCaptureOperations(c.Name(), items, userFile)
	return engine.NewOperationPlan(c.Name(), engine.PlanKindCapture, ops, &captureApplier[R]{
		items:   items,
		persist: persist,
	}), nil
}

// captureApplier records tracked items and writes them to the user layer once.
type captureApplier[R engine.Resource] struct {
	items   []R
	persist func(ctx context.Context, items []R) error
}

func (a *captureApplier[R]) Apply(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	switch op.Verb {
	case engine.VerbTrack:
		return nil
	case engine.VerbWriteManifest:
		if err := a.persist(ctx, a.items); err != nil {
			return engine.NewFatalExecutionError("writing user manifest failed", err).
				WithCode(engine.ErrCodeManifestWrite)
		}
		return nil
	default:
		return engine.NewPermanentError(fmt.Sprintf("capture plan cannot %s", op.Verb), nil)
	}
}

// unsupportedVerb reports an operation an applier does not handle.
func unsupportedVerb(subsystem string, op engine.Operation) error {
	return engine.NewPermanentError(fmt.Sprintf("%s cannot %s", subsystem, op.Verb), nil).
		WithCode(engine.ErrCodeInternal)
}

// storeFile is the user-layer path written by capture.
func storeFile(store *manifest.Store, subsystem string) string {
	return store.Path(manifest.LayerUser, subsystem)
}

// describeCounts renders drift counts for an operation detail.
func describeCounts(c engine.DriftCounts) string {
	return fmt.Sprintf("%d pending, %d untracked", c.Pending, c.Untracked)
}
