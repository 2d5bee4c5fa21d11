package components

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
)

// Options wires the components of a Set.
type Options struct {
	Store *manifest.Store

	Flatpak   FlatpakAdapter
	Extension ExtensionAdapter
	GSetting  GSettingAdapter
	System    SystemAdapter
	Shim      ShimAdapter
	Homebrew  HomebrewAdapter

	// GSettingSchemas is the schema scope the gsetting component observes.
	GSettingSchemas []string

	// ShimDir is the directory shims are generated into.
	ShimDir string

	// PlanParallel bounds how many subsystems are scanned and planned at once.
	PlanParallel int

	Logger zerolog.Logger
}

// Set holds one component per subsystem and dispatches over the roster.
type Set struct {
	Flatpak   *FlatpakComponent
	Extension *ExtensionComponent
	GSetting  *GSettingComponent
	System    *SystemComponent
	Shim      *ShimComponent
	Homebrew  *HomebrewComponent

	planParallel int
	logger       zerolog.Logger
}

// NewSet creates every component.
func NewSet(opts Options) *Set {
	parallel := opts.PlanParallel
	if parallel < 1 {
		parallel = 1
	}
	return &Set{
		Flatpak:      NewFlatpakComponent(opts.Store, opts.Flatpak),
		Extension:    NewExtensionComponent(opts.Store, opts.Extension),
		GSetting:     NewGSettingComponent(opts.Store, opts.GSetting, opts.GSettingSchemas),
		System:       NewSystemComponent(opts.Store, opts.System),
		Shim:         NewShimComponent(opts.Store, opts.Shim, opts.ShimDir),
		Homebrew:     NewHomebrewComponent(opts.Store, opts.Homebrew),
		planParallel: parallel,
		logger:       opts.Logger,
	}
}

// DriftSummary is the drift of one subsystem, by identity.
type DriftSummary struct {
	Subsystem string             `json:"subsystem" yaml:"subsystem"`
	Counts    engine.DriftCounts `json:"counts" yaml:"counts"`
	ToInstall []string           `json:"to_install" yaml:"to_install"`
	ToUpdate  []string           `json:"to_update" yaml:"to_update"`
	Untracked []string           `json:"untracked" yaml:"untracked"`
}

func summarize[R engine.Resource](subsystem string, report engine.DriftReport[R]) DriftSummary {
	updates := make([]string, 0, len(report.ToUpdate))
	for _, p := range report.ToUpdate {
		updates = append(updates, p.Desired.ResourceID())
	}
	return DriftSummary{
		Subsystem: subsystem,
		Counts:    report.Counts(),
		ToInstall: engine.IDs(report.ToInstall),
		ToUpdate:  updates,
		Untracked: engine.IDs(report.Untracked),
	}
}

func summaryOf[R engine.Resource, M any, F any](ctx context.Context, c Component[R, M, F]) (DriftSummary, error) {
	report, _, err := driftOf(ctx, c)
	if err != nil {
		return DriftSummary{Subsystem: c.Name()}, err
	}
	return summarize(c.Name(), report), nil
}

// Status returns the drift counts of sub.
func (s *Set) Status(ctx context.Context, sub Subsystem) (engine.DriftCounts, error) {
	switch sub {
	case Flatpak:
		return statusOf[manifest.FlatpakApp, manifest.FlatpakDocument, NoFilter](ctx, s.Flatpak)
	case Extension:
		return statusOf[manifest.Extension, manifest.ExtensionDocument, NoFilter](ctx, s.Extension)
	case GSetting:
		return statusOf[manifest.Setting, manifest.GSettingDocument, GSettingFilter](ctx, s.GSetting)
	case System:
		return statusOf[manifest.SystemItem, manifest.SystemDocument, NoFilter](ctx, s.System)
	case Shim:
		return statusOf[manifest.Shim, manifest.ShimDocument, NoFilter](ctx, s.Shim)
	case Homebrew:
		return statusOf[manifest.Formula, manifest.HomebrewDocument, NoFilter](ctx, s.Homebrew)
	default:
		return engine.DriftCounts{}, fmt.Errorf("status of %s: %w", sub, engine.ErrUnknownSubsystem)
	}
}

// Drift returns the drift of sub by identity.
func (s *Set) Drift(ctx context.Context, sub Subsystem) (DriftSummary, error) {
	switch sub {
	case Flatpak:
		return summaryOf[manifest.FlatpakApp, manifest.FlatpakDocument, NoFilter](ctx, s.Flatpak)
	case Extension:
		return summaryOf[manifest.Extension, manifest.ExtensionDocument, NoFilter](ctx, s.Extension)
	case GSetting:
		return summaryOf[manifest.Setting, manifest.GSettingDocument, GSettingFilter](ctx, s.GSetting)
	case System:
		return summaryOf[manifest.SystemItem, manifest.SystemDocument, NoFilter](ctx, s.System)
	case Shim:
		return summaryOf[manifest.Shim, manifest.ShimDocument, NoFilter](ctx, s.Shim)
	case Homebrew:
		return summaryOf[manifest.Formula, manifest.HomebrewDocument, NoFilter](ctx, s.Homebrew)
	default:
		return DriftSummary{}, fmt.Errorf("drift of %s: %w", sub, engine.ErrUnknownSubsystem)
	}
}

// PlanApply plans moving sub towards its manifest.
func (s *Set) PlanApply(ctx context.Context, sub Subsystem, prune bool) (*engine.OperationPlan, error) {
	switch sub {
	case Flatpak:
		return s.Flatpak.PlanApply(ctx, prune)
	case Extension:
		return s.Extension.PlanApply(ctx, prune)
	case GSetting:
		return s.GSetting.PlanApply(ctx, prune)
	case System:
		return s.System.PlanApply(ctx, prune)
	case Shim:
		return s.Shim.PlanApply(ctx, prune)
	case Homebrew:
		return s.Homebrew.PlanApply(ctx, prune)
	default:
		return nil, fmt.Errorf("apply plan for %s: %w", sub, engine.ErrUnknownSubsystem)
	}
}

// CaptureOptions carries the capture filters of the subsystems that need one.
type CaptureOptions struct {
	GSetting GSettingFilter
}

// PlanCapture plans recording the live state of sub in the user manifest.
func (s *Set) PlanCapture(ctx context.Context, sub Subsystem, opts CaptureOptions) (*engine.OperationPlan, error) {
	switch sub {
	case Flatpak:
		return s.Flatpak.PlanCapture(ctx)
	case Extension:
		return s.Extension.PlanCapture(ctx)
	case GSetting:
		return s.GSetting.PlanCapture(ctx, opts.GSetting)
	case System:
		return s.System.PlanCapture(ctx)
	case Shim:
		return s.Shim.PlanCapture(ctx)
	case Homebrew:
		return s.Homebrew.PlanCapture(ctx)
	default:
		return nil, fmt.Errorf("capture plan for %s: %w", sub, engine.ErrUnknownSubsystem)
	}
}

// StatusResult is the drift of one subsystem, or the error that prevented computing it.
type StatusResult struct {
	Subsystem Subsystem
	Summary   DriftSummary
	Err       error
}

// StatusAll computes the drift of subs. A failing subsystem is reported in its own
// result and never hides the others. Results follow the order of subs.
func (s *Set) StatusAll(ctx context.Context, subs []Subsystem) []StatusResult {
	results := make([]StatusResult, len(subs))

	var g errgroup.Group
	g.SetLimit(s.planParallel)
	for i, sub := range subs {
		g.Go(func() error {
			summary, err := s.Drift(ctx, sub)
			if err != nil {
				s.logger.Warn().Err(err).Str("subsystem", sub.String()).Msg("Status unavailable")
			}
			results[i] = StatusResult{Subsystem: sub, Summary: summary, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// PlanRequest selects what PlanAll plans.
type PlanRequest struct {
	Kind       engine.PlanKind
	Subsystems []Subsystem
	Prune      bool
	Capture    CaptureOptions
}

// PlanFailure records a subsystem that could not be planned.
type PlanFailure struct {
	Subsystem Subsystem
	Err       error
}

// PlanSet is the outcome of PlanAll.
type PlanSet struct {
	// Plan groups the non-empty sub-plans in the requested order.
	Plan *engine.CompositePlan

	// Failures lists the subsystems left out of Plan.
	Failures []PlanFailure
}

// PlanAll plans every requested subsystem, up to the configured parallelism at once,
// and composes the results in request order. A subsystem whose scan or manifest
// fails is left out and reported in Failures; the error return is reserved for
// requests naming an unknown kind or subsystem.
func (s *Set) PlanAll(ctx context.Context, req PlanRequest) (*PlanSet, error) {
	if req.Kind != engine.PlanKindApply && req.Kind != engine.PlanKindCapture {
		return nil, fmt.Errorf("unknown plan kind %q", req.Kind)
	}
	for _, sub := range req.Subsystems {
		if !sub.Valid() {
			return nil, fmt.Errorf("plan for %s: %w", sub, engine.ErrUnknownSubsystem)
		}
	}

	plans := make([]*engine.OperationPlan, len(req.Subsystems))
	errs := make([]error, len(req.Subsystems))

	var g errgroup.Group
	g.SetLimit(s.planParallel)
	for i, sub := range req.Subsystems {
		g.Go(func() error {
			var err error
			if req.Kind == engine.PlanKindApply {
				plans[i], err = s.PlanApply(ctx, sub, req.Prune)
			} else {
				plans[i], err = s.PlanCapture(ctx, sub, req.Capture)
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	result := &PlanSet{}
	kept := make([]engine.Plan, 0, len(plans))
	for i, sub := range req.Subsystems {
		if errs[i] != nil {
			s.logger.Warn().Err(errs[i]).Str("subsystem", sub.String()).Msg("Planning failed")
			result.Failures = append(result.Failures, PlanFailure{Subsystem: sub, Err: errs[i]})
			continue
		}
		kept = append(kept, plans[i])
	}
	result.Plan = engine.NewComposite(kept...)
	return result, nil
}
