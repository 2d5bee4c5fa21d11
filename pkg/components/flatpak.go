package components

import (
	"context"
	"fmt"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// FlatpakComponent reconciles installed flatpak applications.
type FlatpakComponent struct {
	store   *manifest.Store
	adapter FlatpakAdapter
}

var _ Component[manifest.FlatpakApp, manifest.FlatpakDocument, NoFilter] = (*FlatpakComponent)(nil)

// NewFlatpakComponent creates the flatpak component.
func NewFlatpakComponent(store *manifest.Store, adapter FlatpakAdapter) *FlatpakComponent {
	return &FlatpakComponent{store: store, adapter: adapter}
}

// Name returns "flatpak".
func (c *FlatpakComponent) Name() string { return Flatpak.String() }

// ScanSystem lists installed applications.
func (c *FlatpakComponent) ScanSystem(ctx context.Context) ([]manifest.FlatpakApp, error) {
	apps, err := c.adapter.ListApps(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing flatpak applications", err).WithSubsystem(c.Name())
	}
	return apps, nil
}

// LoadManifest loads the merged flatpak manifest.
func (c *FlatpakComponent) LoadManifest(_ context.Context) (manifest.FlatpakDocument, error) {
	return manifest.Load[manifest.FlatpakDocument](c.store, c.Name())
}

// ManifestItems returns the declared applications.
func (c *FlatpakComponent) ManifestItems(m manifest.FlatpakDocument) []manifest.FlatpakApp {
	return m.Apps
}

// Diff compares presence only; the remote an application came from is not state.
func (c *FlatpakComponent) Diff(system []manifest.FlatpakApp, m manifest.FlatpakDocument) engine.DriftReport[manifest.FlatpakApp] {
	return engine.Diff(system, c.ManifestItems(m))
}

// SupportsCapture returns true.
func (c *FlatpakComponent) SupportsCapture() bool { return true }

// Capture records every live application.
func (c *FlatpakComponent) Capture(system []manifest.FlatpakApp, _ NoFilter) (*manifest.FlatpakDocument, bool) {
	apps := make([]manifest.FlatpakApp, len(system))
	copy(apps, system)
	return &manifest.FlatpakDocument{Apps: apps}, true
}

// PlanApply plans missing remotes and applications, and removals when pruning.
func (c *FlatpakComponent) PlanApply(ctx context.Context, prune bool) (*engine.OperationPlan, error) {
	return planApply[manifest.FlatpakApp, manifest.FlatpakDocument, NoFilter](ctx, c, applyWiring[manifest.FlatpakApp, manifest.FlatpakDocument]{
		mapper:   flatpakMapper{},
		preamble: c.missingRemotes,
		applier:  &flatpakApplier{adapter: c.adapter},
	}, prune)
}

// PlanCapture plans recording untracked applications in the user manifest.
func (c *FlatpakComponent) PlanCapture(ctx context.Context) (*engine.OperationPlan, error) {
	return planCapture[manifest.FlatpakApp, manifest.FlatpakDocument, NoFilter](ctx, c, NoFilter{}, storeFile(c.store, c.Name()), c.persist)
}

func (c *FlatpakComponent) missingRemotes(ctx context.Context, m manifest.FlatpakDocument) ([]engine.Operation, error) {
	if len(m.Remotes) == 0 {
		return nil, nil
	}
	live, err := c.adapter.ListRemotes(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing flatpak remotes", err).WithSubsystem(c.Name())
	}
	present := make(map[string]bool, len(live))
	for _, r := range live {
		present[r.Name] = true
	}
	var ops []engine.Operation
	for _, r := range m.Remotes {
		if !present[r.Name] {
			ops = append(ops, engine.Operation{Verb: engine.VerbAddRepo, Target: r.Name, Detail: r.URL})
		}
	}
	return ops, nil
}

func (c *FlatpakComponent) persist(_ context.Context, items []manifest.FlatpakApp) error {
	user, err := manifest.LoadUser[manifest.FlatpakDocument](c.store, c.Name())
	if err != nil {
		return err
	}
	user.Apps = manifest.MergeResources(user.Apps, items, nil)
	return c.store.WriteUser(c.Name(), user)
}

type flatpakMapper struct{}

func (flatpakMapper) Install(app manifest.FlatpakApp) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbInstall, Target: app.ID, Detail: app.Remote}}
}

func (flatpakMapper) Update(engine.Pair[manifest.FlatpakApp]) []engine.Operation { return nil }

func (flatpakMapper) Remove(app manifest.FlatpakApp) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbRemove, Target: app.ID}}
}

type flatpakApplier struct {
	adapter FlatpakAdapter
}

func (a *flatpakApplier) Apply(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	switch op.Verb {
	case engine.VerbAddRepo:
		if err := a.adapter.AddRemote(ctx, manifest.FlatpakRemote{Name: op.Target, URL: op.Detail}); err != nil {
			// Installs from a missing remote cannot succeed.
			return engine.NewFatalExecutionError(fmt.Sprintf("adding remote %s", op.Target), err)
		}
		return nil
	case engine.VerbInstall:
		return a.adapter.Install(ctx, manifest.FlatpakApp{ID: op.Target, Remote: op.Detail})
	case engine.VerbRemove:
		return a.adapter.Uninstall(ctx, op.Target)
	default:
		return unsupportedVerb(Flatpak.String(), op)
	}
}
