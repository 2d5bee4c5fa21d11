package components

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

// ShimComponent reconciles the shim directory. Shims are derived entirely from the
// manifest, so any drift is resolved by regenerating the whole directory and there
// is nothing to capture.
type ShimComponent struct {
	store   *manifest.Store
	adapter ShimAdapter
	dir     string
}

var _ Component[manifest.Shim, manifest.ShimDocument, NoFilter] = (*ShimComponent)(nil)

// NewShimComponent creates the shim component for dir.
func NewShimComponent(store *manifest.Store, adapter ShimAdapter, dir string) *ShimComponent {
	return &ShimComponent{store: store, adapter: adapter, dir: dir}
}

// Name returns "shim".
func (c *ShimComponent) Name() string { return Shim.String() }

// ScanSystem lists the shims currently generated.
func (c *ShimComponent) ScanSystem(ctx context.Context) ([]manifest.Shim, error) {
	shims, err := c.adapter.List(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing shims", err).WithSubsystem(c.Name())
	}
	return shims, nil
}

// LoadManifest loads the merged shim manifest.
func (c *ShimComponent) LoadManifest(_ context.Context) (manifest.ShimDocument, error) {
	return manifest.Load[manifest.ShimDocument](c.store, c.Name())
}

// ManifestItems returns the declared shims.
func (c *ShimComponent) ManifestItems(m manifest.ShimDocument) []manifest.Shim {
	return m.Shims
}

// Diff also compares the host command each shim forwards to.
func (c *ShimComponent) Diff(system []manifest.Shim, m manifest.ShimDocument) engine.DriftReport[manifest.Shim] {
	return engine.DiffWith(system, c.ManifestItems(m), func(current, desired manifest.Shim) bool {
		return current.Command == desired.Command
	})
}

// SupportsCapture returns false.
func (c *ShimComponent) SupportsCapture() bool { return false }

// Capture returns nothing; shims have no independent live state.
func (c *ShimComponent) Capture([]manifest.Shim, NoFilter) (*manifest.ShimDocument, bool) {
	return nil, false
}

// PlanApply plans a single regeneration when the directory differs from the manifest
// in any way. Untracked shims are always dropped by the regeneration.
func (c *ShimComponent) PlanApply(ctx context.Context, _ bool) (*engine.OperationPlan, error) {
	ic := telemetry.StartOperation(ctx, "plan", attribute.String("subsystem", c.Name()), attribute.String("kind", "apply"))
	report, m, err := driftOf[manifest.Shim, manifest.ShimDocument, NoFilter](ic.Ctx, c)
	if err != nil {
		ic.End(err)
		return nil, err
	}

	var ops []engine.Operation
	if !report.InSync() || len(report.Untracked) > 0 {
		ops = []engine.Operation{{Verb: engine.VerbRegenerate, Target: c.dir, Detail: describeCounts(report.Counts())}}
	}

	shims := c.ManifestItems(m)
	applier := engine.ApplierFunc(func(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
		if op.Verb != engine.VerbRegenerate {
			return unsupportedVerb(Shim.String(), op)
		}
		return c.adapter.Regenerate(ctx, shims)
	})
	ic.End(nil)
	return engine.NewOperationPlan(c.Name(), engine.PlanKindApply, ops, applier), nil
}

// PlanCapture returns an empty plan.
func (c *ShimComponent) PlanCapture(ctx context.Context) (*engine.OperationPlan, error) {
	return planCapture[manifest.Shim, manifest.ShimDocument, NoFilter](ctx, c, NoFilter{}, "", nil)
}
