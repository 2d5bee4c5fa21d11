package components

import (
	"context"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// ExtensionComponent reconciles GNOME shell extensions, including whether each one
// is enabled.
type ExtensionComponent struct {
	store   *manifest.Store
	adapter ExtensionAdapter
}

var _ Component[manifest.Extension, manifest.ExtensionDocument, NoFilter] = (*ExtensionComponent)(nil)

// NewExtensionComponent creates the extension component.
func NewExtensionComponent(store *manifest.Store, adapter ExtensionAdapter) *ExtensionComponent {
	return &ExtensionComponent{store: store, adapter: adapter}
}

// Name returns "extension".
func (c *ExtensionComponent) Name() string { return Extension.String() }

// ScanSystem lists installed extensions with their enabled state.
func (c *ExtensionComponent) ScanSystem(ctx context.Context) ([]manifest.Extension, error) {
	exts, err := c.adapter.List(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing shell extensions", err).WithSubsystem(c.Name())
	}
	return exts, nil
}

// LoadManifest loads the merged extension manifest.
func (c *ExtensionComponent) LoadManifest(_ context.Context) (manifest.ExtensionDocument, error) {
	return manifest.Load[manifest.ExtensionDocument](c.store, c.Name())
}

// ManifestItems returns the declared extensions.
func (c *ExtensionComponent) ManifestItems(m manifest.ExtensionDocument) []manifest.Extension {
	return m.Extensions
}

// Diff also compares the enabled flag of extensions present on both sides.
func (c *ExtensionComponent) Diff(system []manifest.Extension, m manifest.ExtensionDocument) engine.DriftReport[manifest.Extension] {
	return engine.DiffWith(system, c.ManifestItems(m), func(current, desired manifest.Extension) bool {
		return current.Enabled == desired.Enabled
	})
}

// SupportsCapture returns true.
func (c *ExtensionComponent) SupportsCapture() bool { return true }

// Capture records every live extension with its current enabled state.
func (c *ExtensionComponent) Capture(system []manifest.Extension, _ NoFilter) (*manifest.ExtensionDocument, bool) {
	exts := make([]manifest.Extension, len(system))
	copy(exts, system)
	return &manifest.ExtensionDocument{Extensions: exts}, true
}

// PlanApply plans installs, enable/disable changes and removals when pruning.
func (c *ExtensionComponent) PlanApply(ctx context.Context, prune bool) (*engine.OperationPlan, error) {
	return planApply[manifest.Extension, manifest.ExtensionDocument, NoFilter](ctx, c, applyWiring[manifest.Extension, manifest.ExtensionDocument]{
		mapper:  extensionMapper{},
		applier: &extensionApplier{adapter: c.adapter},
	}, prune)
}

// PlanCapture plans recording untracked extensions, and live enabled states that
// differ from the manifest, in the user manifest.
func (c *ExtensionComponent) PlanCapture(ctx context.Context) (*engine.OperationPlan, error) {
	return planCapture[manifest.Extension, manifest.ExtensionDocument, NoFilter](ctx, c, NoFilter{}, storeFile(c.store, c.Name()), c.persist)
}

func (c *ExtensionComponent) persist(_ context.Context, items []manifest.Extension) error {
	user, err := manifest.LoadUser[manifest.ExtensionDocument](c.store, c.Name())
	if err != nil {
		return err
	}
	user.Extensions = manifest.MergeResources(user.Extensions, items, nil)
	return c.store.WriteUser(c.Name(), user)
}

type extensionMapper struct{}

func (extensionMapper) Install(ext manifest.Extension) []engine.Operation {
	ops := []engine.Operation{{Verb: engine.VerbInstall, Target: ext.UUID}}
	if ext.Enabled {
		ops = append(ops, engine.Operation{Verb: engine.VerbEnable, Target: ext.UUID})
	}
	return ops
}

func (extensionMapper) Update(p engine.Pair[manifest.Extension]) []engine.Operation {
	if p.Desired.Enabled {
		return []engine.Operation{{Verb: engine.VerbEnable, Target: p.Desired.UUID}}
	}
	return []engine.Operation{{Verb: engine.VerbDisable, Target: p.Desired.UUID}}
}

func (extensionMapper) Remove(ext manifest.Extension) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbRemove, Target: ext.UUID}}
}

type extensionApplier struct {
	adapter ExtensionAdapter
}

func (a *extensionApplier) Apply(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	switch op.Verb {
	case engine.VerbInstall:
		return a.adapter.Install(ctx, op.Target)
	case engine.VerbEnable:
		return a.adapter.Enable(ctx, op.Target)
	case engine.VerbDisable:
		return a.adapter.Disable(ctx, op.Target)
	case engine.VerbRemove:
		return a.adapter.Uninstall(ctx, op.Target)
	default:
		return unsupportedVerb(Extension.String(), op)
	}
}
