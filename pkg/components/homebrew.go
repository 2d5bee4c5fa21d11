package components

import (
	"context"
	"fmt"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// HomebrewComponent reconciles homebrew formulae. Taps are not resources of their
// own: declared taps that are missing are added before any install.
type HomebrewComponent struct {
	store   *manifest.Store
	adapter HomebrewAdapter
}

var _ Component[manifest.Formula, manifest.HomebrewDocument, NoFilter] = (*HomebrewComponent)(nil)

// NewHomebrewComponent creates the homebrew component.
func NewHomebrewComponent(store *manifest.Store, adapter HomebrewAdapter) *HomebrewComponent {
	return &HomebrewComponent{store: store, adapter: adapter}
}

// Name returns "homebrew".
func (c *HomebrewComponent) Name() string { return Homebrew.String() }

// ScanSystem lists formulae installed on request.
func (c *HomebrewComponent) ScanSystem(ctx context.Context) ([]manifest.Formula, error) {
	names, err := c.adapter.ListFormulae(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing homebrew formulae", err).WithSubsystem(c.Name())
	}
	formulae := make([]manifest.Formula, 0, len(names))
	for _, n := range names {
		formulae = append(formulae, manifest.Formula{Name: n})
	}
	return formulae, nil
}

// LoadManifest loads the merged homebrew manifest.
func (c *HomebrewComponent) LoadManifest(_ context.Context) (manifest.HomebrewDocument, error) {
	return manifest.Load[manifest.HomebrewDocument](c.store, c.Name())
}

// ManifestItems returns the declared formulae.
func (c *HomebrewComponent) ManifestItems(m manifest.HomebrewDocument) []manifest.Formula {
	return m.Items()
}

// Diff compares presence only.
func (c *HomebrewComponent) Diff(system []manifest.Formula, m manifest.HomebrewDocument) engine.DriftReport[manifest.Formula] {
	return engine.Diff(system, c.ManifestItems(m))
}

// SupportsCapture returns true.
func (c *HomebrewComponent) SupportsCapture() bool { return true }

// Capture records every live formula.
func (c *HomebrewComponent) Capture(system []manifest.Formula, _ NoFilter) (*manifest.HomebrewDocument, bool) {
	doc := &manifest.HomebrewDocument{}
	for _, f := range system {
		doc.Formulae = append(doc.Formulae, f.Name)
	}
	return doc, true
}

// PlanApply plans missing taps and formulae, and uninstalls when pruning.
func (c *HomebrewComponent) PlanApply(ctx context.Context, prune bool) (*engine.OperationPlan, error) {
	return planApply[manifest.Formula, manifest.HomebrewDocument, NoFilter](ctx, c, applyWiring[manifest.Formula, manifest.HomebrewDocument]{
		mapper:   homebrewMapper{},
		preamble: c.missingTaps,
		applier:  &homebrewApplier{adapter: c.adapter},
	}, prune)
}

// PlanCapture plans recording untracked formulae in the user manifest.
func (c *HomebrewComponent) PlanCapture(ctx context.Context) (*engine.OperationPlan, error) {
	return planCapture[manifest.Formula, manifest.HomebrewDocument, NoFilter](ctx, c, NoFilter{}, storeFile(c.store, c.Name()), c.persist)
}

func (c *HomebrewComponent) missingTaps(ctx context.Context, m manifest.HomebrewDocument) ([]engine.Operation, error) {
	if len(m.Taps) == 0 {
		return nil, nil
	}
	live, err := c.adapter.ListTaps(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing homebrew taps", err).WithSubsystem(c.Name())
	}
	present := make(map[string]bool, len(live))
	for _, t := range live {
		present[t] = true
	}
	var ops []engine.Operation
	for _, t := range m.Taps {
		if !present[t] {
			ops = append(ops, engine.Operation{Verb: engine.VerbAddRepo, Target: t})
		}
	}
	return ops, nil
}

func (c *HomebrewComponent) persist(_ context.Context, items []manifest.Formula) error {
	user, err := manifest.LoadUser[manifest.HomebrewDocument](c.store, c.Name())
	if err != nil {
		return err
	}
	for _, f := range items {
		user.Formulae = manifest.UnionStrings(user.Formulae, []string{f.Name})
	}
	return c.store.WriteUser(c.Name(), user)
}

type homebrewMapper struct{}

func (homebrewMapper) Install(f manifest.Formula) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbInstall, Target: f.Name}}
}

func (homebrewMapper) Update(engine.Pair[manifest.Formula]) []engine.Operation { return nil }

func (homebrewMapper) Remove(f manifest.Formula) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbRemove, Target: f.Name}}
}

type homebrewApplier struct {
	adapter HomebrewAdapter
}

var _ engine.Prechecker = (*homebrewApplier)(nil)

func (a *homebrewApplier) Apply(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	switch op.Verb {
	case engine.VerbAddRepo:
		return a.adapter.Tap(ctx, op.Target)
	case engine.VerbInstall:
		return a.adapter.Install(ctx, op.Target)
	case engine.VerbRemove:
		return a.adapter.Uninstall(ctx, op.Target)
	default:
		return unsupportedVerb(Homebrew.String(), op)
	}
}

// Precheck confirms a formula is still installed before uninstalling it.
func (a *homebrewApplier) Precheck(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	installed, err := a.adapter.IsInstalled(ctx, op.Target)
	if err != nil {
		return fmt.Errorf("checking %s: %w", op.Target, err)
	}
	if !installed {
		return errNotPresent
	}
	return nil
}
