package components

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openfroyo/hostsync/pkg/baseline"
	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// GSettingFilter scopes which live keys are eligible for capture. The key space
// cannot be captured in full, so an empty filter captures nothing.
type GSettingFilter struct {
	// Schemas admits every key of these schemas and of schemas nested below them.
	Schemas []string

	// Keys admits these exact "schema.key" paths.
	Keys []string
}

// IsEmpty returns true if the filter admits nothing.
func (f GSettingFilter) IsEmpty() bool {
	return len(f.Schemas) == 0 && len(f.Keys) == 0
}

// Admits reports whether key passes the filter.
func (f GSettingFilter) Admits(key string) bool {
	for _, k := range f.Keys {
		if k == key {
			return true
		}
	}
	schema := baseline.Namespace(key)
	for _, s := range f.Schemas {
		if schema == s || strings.HasPrefix(schema, s+".") {
			return true
		}
	}
	return false
}

// GSettingComponent reconciles configuration keys and their values.
//
// Only keys that are declared in the manifest or that fall inside the configured
// schema scope are observed; the rest of the key space is never reported.
type GSettingComponent struct {
	store   *manifest.Store
	adapter GSettingAdapter
	scope   GSettingFilter
}

var _ Component[manifest.Setting, manifest.GSettingDocument, GSettingFilter] = (*GSettingComponent)(nil)

// NewGSettingComponent creates the gsetting component observing the given schemas.
func NewGSettingComponent(store *manifest.Store, adapter GSettingAdapter, schemas []string) *GSettingComponent {
	return &GSettingComponent{
		store:   store,
		adapter: adapter,
		scope:   GSettingFilter{Schemas: schemas},
	}
}

// Name returns "gsetting".
func (c *GSettingComponent) Name() string { return GSetting.String() }

// Scope returns the configured schema scope.
func (c *GSettingComponent) Scope() GSettingFilter { return c.scope }

// ScanSystem reads every key, sorted by path.
func (c *GSettingComponent) ScanSystem(ctx context.Context) ([]manifest.Setting, error) {
	values, err := c.Values(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	settings := make([]manifest.Setting, 0, len(keys))
	for _, k := range keys {
		schema, key := baseline.Split(k)
		settings = append(settings, manifest.Setting{Schema: schema, Key: key, Value: values[k]})
	}
	return settings, nil
}

// Values returns the raw key space, as used for baseline snapshots.
func (c *GSettingComponent) Values(ctx context.Context) (map[string]string, error) {
	values, err := c.adapter.Dump(ctx)
	if err != nil {
		return nil, engine.NewScanError("reading configuration keys", err).WithSubsystem(c.Name())
	}
	return values, nil
}

// LoadManifest loads the merged gsetting manifest.
func (c *GSettingComponent) LoadManifest(_ context.Context) (manifest.GSettingDocument, error) {
	return manifest.Load[manifest.GSettingDocument](c.store, c.Name())
}

// ManifestItems returns the declared settings.
func (c *GSettingComponent) ManifestItems(m manifest.GSettingDocument) []manifest.Setting {
	return m.Settings
}

// Diff compares values of declared keys and reports in-scope live keys that are not
// declared as untracked.
func (c *GSettingComponent) Diff(system []manifest.Setting, m manifest.GSettingDocument) engine.DriftReport[manifest.Setting] {
	declared := make(map[string]struct{}, len(m.Settings))
	for _, s := range m.Settings {
		declared[s.ResourceID()] = struct{}{}
	}

	observed := make([]manifest.Setting, 0, len(declared))
	for _, s := range system {
		if _, ok := declared[s.ResourceID()]; ok || c.scope.Admits(s.ResourceID()) {
			observed = append(observed, s)
		}
	}

	return engine.DiffWith(observed, c.ManifestItems(m), func(current, desired manifest.Setting) bool {
		return current.Value == desired.Value
	})
}

// SupportsCapture returns true.
func (c *GSettingComponent) SupportsCapture() bool { return true }

// Capture records the live keys admitted by filter. An empty filter captures
// nothing and reports false.
func (c *GSettingComponent) Capture(system []manifest.Setting, filter GSettingFilter) (*manifest.GSettingDocument, bool) {
	if filter.IsEmpty() {
		return nil, false
	}
	var settings []manifest.Setting
	for _, s := range system {
		if filter.Admits(s.ResourceID()) {
			settings = append(settings, s)
		}
	}
	return &manifest.GSettingDocument{Settings: settings}, true
}

// PlanApply plans value changes for declared keys, and resets of untracked in-scope
// keys when pruning.
func (c *GSettingComponent) PlanApply(ctx context.Context, prune bool) (*engine.OperationPlan, error) {
	return planApply[manifest.Setting, manifest.GSettingDocument, GSettingFilter](ctx, c, applyWiring[manifest.Setting, manifest.GSettingDocument]{
		mapper:  gsettingMapper{},
		applier: &gsettingApplier{adapter: c.adapter},
	}, prune)
}

// PlanCapture plans recording the live keys admitted by filter in the user manifest.
// The observed scope is widened by filter so keys outside the configured schemas can
// still be captured.
func (c *GSettingComponent) PlanCapture(ctx context.Context, filter GSettingFilter) (*engine.OperationPlan, error) {
	widened := &GSettingComponent{
		store:   c.store,
		adapter: c.adapter,
		scope: GSettingFilter{
			Schemas: manifest.UnionStrings(c.scope.Schemas, filter.Schemas),
			Keys:    manifest.UnionStrings(c.scope.Keys, filter.Keys),
		},
	}
	return planCapture[manifest.Setting, manifest.GSettingDocument, GSettingFilter](ctx, widened, filter, storeFile(c.store, c.Name()), c.persist)
}

func (c *GSettingComponent) persist(_ context.Context, items []manifest.Setting) error {
	user, err := manifest.LoadUser[manifest.GSettingDocument](c.store, c.Name())
	if err != nil {
		return err
	}
	user.Settings = manifest.MergeResources(user.Settings, items, nil)
	return c.store.WriteUser(c.Name(), user)
}

type gsettingMapper struct{}

func (gsettingMapper) Install(s manifest.Setting) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbSet, Target: s.ResourceID(), Detail: s.Value}}
}

func (gsettingMapper) Update(p engine.Pair[manifest.Setting]) []engine.Operation {
	return []engine.Operation{{
		Verb:   engine.VerbSet,
		Target: p.Desired.ResourceID(),
		Detail: p.Desired.Value,
	}}
}

func (gsettingMapper) Remove(s manifest.Setting) []engine.Operation {
	return []engine.Operation{{Verb: engine.VerbReset, Target: s.ResourceID()}}
}

type gsettingApplier struct {
	adapter GSettingAdapter
}

func (a *gsettingApplier) Apply(ctx context.Context, _ *engine.ExecContext, op engine.Operation) error {
	schema, key := baseline.Split(op.Target)
	if schema == "" {
		return engine.NewPermanentError(fmt.Sprintf("invalid key path %q", op.Target), nil).
			WithCode(engine.ErrCodeValidation)
	}
	switch op.Verb {
	case engine.VerbSet:
		return a.adapter.Set(ctx, schema, key, op.Detail)
	case engine.VerbReset:
		return a.adapter.Reset(ctx, schema, key)
	default:
		return unsupportedVerb(GSetting.String(), op)
	}
}
