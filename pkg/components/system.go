package components

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// DefaultBackend is used when the execution context names no package backend.
const DefaultBackend = "dnf"

// errNotPresent is the precondition failure of removing something already gone.
var errNotPresent = errors.New("no longer present")

// SystemComponent reconciles system packages, package groups and COPR repositories.
// Identities are kind-prefixed ("package:htop", "group:c-development",
// "copr:atim/starship") so the kinds never collide.
type SystemComponent struct {
	store   *manifest.Store
	adapter SystemAdapter
}

var _ Component[manifest.SystemItem, manifest.SystemDocument, NoFilter] = (*SystemComponent)(nil)

// NewSystemComponent creates the system component.
func NewSystemComponent(store *manifest.Store, adapter SystemAdapter) *SystemComponent {
	return &SystemComponent{store: store, adapter: adapter}
}

// Name returns "system".
func (c *SystemComponent) Name() string { return System.String() }

// ScanSystem lists user-requested packages, installed groups and enabled repositories.
func (c *SystemComponent) ScanSystem(ctx context.Context) ([]manifest.SystemItem, error) {
	items, err := c.adapter.List(ctx)
	if err != nil {
		return nil, engine.NewScanError("listing system packages", err).WithSubsystem(c.Name())
	}
	return items, nil
}

// LoadManifest loads the merged system manifest.
func (c *SystemComponent) LoadManifest(_ context.Context) (manifest.SystemDocument, error) {
	return manifest.Load[manifest.SystemDocument](c.store, c.Name())
}

// ManifestItems flattens the declared repositories, groups and packages.
func (c *SystemComponent) ManifestItems(m manifest.SystemDocument) []manifest.SystemItem {
	return m.Items()
}

// Diff compares presence only.
func (c *SystemComponent) Diff(system []manifest.SystemItem, m manifest.SystemDocument) engine.DriftReport[manifest.SystemItem] {
	return engine.Diff(system, c.ManifestItems(m))
}

// SupportsCapture returns true.
func (c *SystemComponent) SupportsCapture() bool { return true }

// Capture records every live item.
func (c *SystemComponent) Capture(system []manifest.SystemItem, _ NoFilter) (*manifest.SystemDocument, bool) {
	doc := &manifest.SystemDocument{}
	for _, item := range system {
		doc.Add(item)
	}
	return doc, true
}

// PlanApply plans repository additions and installs, and removals when pruning.
// Repositories come first in the manifest order, so packages from them install after.
func (c *SystemComponent) PlanApply(ctx context.Context, prune bool) (*engine.OperationPlan, error) {
	return planApply[manifest.SystemItem, manifest.SystemDocument, NoFilter](ctx, c, applyWiring[manifest.SystemItem, manifest.SystemDocument]{
		mapper:  systemMapper{},
		applier: &systemApplier{adapter: c.adapter},
	}, prune)
}

// PlanCapture plans recording untracked items in the user manifest.
func (c *SystemComponent) PlanCapture(ctx context.Context) (*engine.OperationPlan, error) {
	return planCapture[manifest.SystemItem, manifest.SystemDocument, NoFilter](ctx, c, NoFilter{}, storeFile(c.store, c.Name()), c.persist)
}

func (c *SystemComponent) persist(_ context.Context, items []manifest.SystemItem) error {
	user, err := manifest.LoadUser[manifest.SystemDocument](c.store, c.Name())
	if err != nil {
		return err
	}
	for _, item := range items {
		user.Add(item)
	}
	return c.store.WriteUser(c.Name(), user)
}

type systemMapper struct{}

func (systemMapper) Install(item manifest.SystemItem) []engine.Operation {
	verb := engine.VerbInstall
	if item.Kind == manifest.SystemKindCopr {
		verb = engine.VerbAddRepo
	}
	return []engine.Operation{{Verb: verb, Target: item.ResourceID()}}
}

func (systemMapper) Update(engine.Pair[manifest.SystemItem]) []engine.Operation { return nil }

func (systemMapper) Remove(item manifest.SystemItem) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbRemove, Target: item.ResourceID()}}
}

type systemApplier struct {
	adapter SystemAdapter
}

var _ engine.Prechecker = (*systemApplier)(nil)

func (a *systemApplier) Apply(ctx context.Context, ec *engine.ExecContext, op engine.Operation) error {
	item := manifest.ParseSystemItem(op.Target)
	backend := ec.Backend
	if backend == "" {
		backend = DefaultBackend
	}
	switch op.Verb {
	case engine.VerbInstall, engine.VerbAddRepo:
		return a.adapter.Install(ctx, backend, item)
	case engine.VerbRemove:
		return a.adapter.Remove(ctx, backend, item)
	default:
		return unsupportedVerb(System.String(), op)
	}
}

// Precheck confirms an item is still present before removing it.
func (a *systemApplier) Precheck(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	present, err := a.adapter.IsPresent(ctx, manifest.ParseSystemItem(op.Target))
	if err != nil {
		return fmt.Errorf("checking %s: %w", op.Target, err)
	}
	if !present {
		return errNotPresent
	}
	return nil
}
