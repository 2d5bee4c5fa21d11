package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingApplier records applied targets and fails the ones listed.
type recordingApplier struct {
	mu       sync.Mutex
	applied  []string
	failures map[string]error
	vetoes   map[string]error
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{
		failures: make(map[string]error),
		vetoes:   make(map[string]error),
	}
}

func (a *recordingApplier) Apply(_ context.Context, _ *ExecContext, op Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, op.Target)
	return a.failures[op.Target]
}

func (a *recordingApplier) Applied() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

type prechecking struct {
	*recordingApplier
}

func (p prechecking) Precheck(_ context.Context, _ *ExecContext, op Operation) error {
	return p.vetoes[op.Target]
}

func installOps(targets ...string) []Operation {
	ops := make([]Operation, 0, len(targets))
	for _, t := range targets {
		ops = append(ops, Operation{Verb: VerbInstall, Target: t})
	}
	return ops
}

func TestOperationPlan_Describe(t *testing.T) {
	ops := append(installOps("a", "b"), Operation{Verb: VerbRemove, Target: "c"})
	plan := NewOperationPlan("flatpak", PlanKindApply, ops, newRecordingApplier())

	desc := plan.Describe()

	require.Len(t, desc.Operations, 3)
	assert.Equal(t, "flatpak", desc.Operations[0].Subsystem)
	assert.Equal(t, "flatpak: 2 install, 1 remove", desc.Summary)
	assert.Equal(t, map[Verb]int{VerbInstall: 2, VerbRemove: 1}, desc.CountByVerb())
	assert.False(t, plan.IsEmpty())
	assert.Equal(t, PlanKindApply, plan.Kind())
}

func TestOperationPlan_DescribeIsPure(t *testing.T) {
	applier := newRecordingApplier()
	plan := NewOperationPlan("flatpak", PlanKindApply, installOps("a"), applier)

	first := plan.Describe()
	first.Operations[0].Target = "mutated"
	second := plan.Describe()

	assert.Equal(t, "a", second.Operations[0].Target)
	assert.Empty(t, applier.Applied())
}

func TestOperationPlan_EmptySummary(t *testing.T) {
	plan := NewOperationPlan("shim", PlanKindApply, nil, nil)

	assert.True(t, plan.IsEmpty())
	assert.Equal(t, "shim: nothing to do", plan.Describe().Summary)

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunStatusEmpty, report.Status)
}

func TestOperationPlan_ExecuteContinuesAfterFailure(t *testing.T) {
	applier := newRecordingApplier()
	applier.failures["b"] = errors.New("exit status 1")
	plan := NewOperationPlan("system", PlanKindApply, installOps("a", "b", "c"), applier)

	report, err := plan.Execute(context.Background(), NewExecContext())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, applier.Applied())
	assert.Equal(t, RunStatusPartial, report.Status)
	assert.Equal(t, ReportSummary{Total: 3, Succeeded: 2, Failed: 1}, report.Summary)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Operation.Target)
	assert.Contains(t, failures[0].Reason, "exit status 1")
	require.NotNil(t, failures[0].Error)
	assert.Equal(t, ErrorClassExecution, failures[0].Error.Class)
	assert.Equal(t, "system", failures[0].Error.Subsystem)
	assert.Equal(t, "b", failures[0].Error.Target)
	assert.False(t, report.HasFatal())
}

func TestOperationPlan_FatalSkipsRemaining(t *testing.T) {
	applier := newRecordingApplier()
	applier.failures["b"] = NewFatalExecutionError("package manager locked", nil)
	plan := NewOperationPlan("system", PlanKindApply, installOps("a", "b", "c", "d"), applier)

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, applier.Applied())
	require.Len(t, report.Results, 4)
	assert.Equal(t, OperationStatusSucceeded, report.Results[0].Status)
	assert.Equal(t, OperationStatusFailed, report.Results[1].Status)
	assert.Equal(t, OperationStatusSkipped, report.Results[2].Status)
	assert.Equal(t, OperationStatusSkipped, report.Results[3].Status)
	require.Len(t, report.Fatal, 1)
	assert.True(t, IsFatal(report.Fatal[0]))
	assert.Equal(t, RunStatusPartial, report.Status)
}

func TestOperationPlan_FatalFirstIsFailed(t *testing.T) {
	applier := newRecordingApplier()
	applier.failures["a"] = NewFatalExecutionError("disk full", nil)
	plan := NewOperationPlan("homebrew", PlanKindApply, installOps("a", "b"), applier)

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, RunStatusFailed, report.Status)
	assert.Equal(t, 1, report.Summary.Skipped)
}

func TestOperationPlan_CancelledContext(t *testing.T) {
	applier := newRecordingApplier()
	plan := NewOperationPlan("flatpak", PlanKindApply, installOps("a", "b"), applier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := plan.Execute(ctx, nil)
	require.NoError(t, err)

	assert.Empty(t, applier.Applied())
	assert.Equal(t, 2, report.Summary.Skipped)
	assert.True(t, report.HasFatal())
	assert.Equal(t, RunStatusFailed, report.Status)
}

func TestOperationPlan_ExecuteOnce(t *testing.T) {
	plan := NewOperationPlan("flatpak", PlanKindApply, installOps("a"), newRecordingApplier())

	_, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	_, err = plan.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPlanConsumed)
}

func TestOperationPlan_PrecheckSkipsDestructive(t *testing.T) {
	base := newRecordingApplier()
	base.vetoes["gone"] = errors.New("not installed anymore")
	base.vetoes["kept"] = errors.New("veto ignored for installs")
	applier := prechecking{base}

	ops := []Operation{
		{Verb: VerbInstall, Target: "kept"},
		{Verb: VerbRemove, Target: "gone"},
		{Verb: VerbRemove, Target: "still-there"},
	}
	plan := NewOperationPlan("system", PlanKindApply, ops, applier)

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"kept", "still-there"}, base.Applied())
	assert.Equal(t, OperationStatusSkipped, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Reason, "not installed anymore")
	assert.Equal(t, RunStatusPartial, report.Status)
}

func TestOperationPlan_NilApplier(t *testing.T) {
	plan := NewOperationPlan("flatpak", PlanKindApply, installOps("a"), nil)

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Failures(), 1)
	assert.True(t, IsPermanent(report.Failures()[0].Error))
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished []OperationStatus
}

func (o *countingObserver) OperationStarted(ctx context.Context, _ Operation) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
	return ctx
}

func (o *countingObserver) OperationFinished(_ context.Context, result OperationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, result.Status)
}

func TestOperationPlan_Observer(t *testing.T) {
	applier := newRecordingApplier()
	applier.failures["b"] = errors.New("boom")
	obs := &countingObserver{}
	ec := NewExecContext()
	ec.Observer = obs

	plan := NewOperationPlan("flatpak", PlanKindApply, installOps("a", "b"), applier)
	_, err := plan.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, 2, obs.started)
	assert.Equal(t, []OperationStatus{OperationStatusSucceeded, OperationStatusFailed}, obs.finished)
}

type presenceMapper struct{}

func (presenceMapper) Install(r testItem) []Operation {
	return []Operation{{Verb: VerbInstall, Target: r.ID}}
}

func (presenceMapper) Update(p Pair[testItem]) []Operation {
	verb := VerbEnable
	if !p.Desired.Enabled {
		verb = VerbDisable
	}
	return []Operation{{Verb: verb, Target: p.Desired.ID}}
}

func (presenceMapper) Remove(r testItem) []Operation {
	return []Operation{{Verb: VerbRemove, Target: r.ID}}
}

func TestBuildApplyOperations(t *testing.T) {
	system := []testItem{{ID: "b", Enabled: false}, {ID: "c", Enabled: true}}
	manifest := []testItem{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}}
	report := DiffWith(system, manifest, enabledEqual)
	preamble := []Operation{{Verb: VerbAddRepo, Target: "flathub"}}

	t.Run("without prune", func(t *testing.T) {
		ops := BuildApplyOperations(report, presenceMapper{}, ApplyOptions{Preamble: preamble})
		assert.Equal(t, []Operation{
			{Verb: VerbAddRepo, Target: "flathub"},
			{Verb: VerbInstall, Target: "a"},
			{Verb: VerbEnable, Target: "b"},
		}, ops)
	})

	t.Run("with prune", func(t *testing.T) {
		ops := BuildApplyOperations(report, presenceMapper{}, ApplyOptions{Prune: true})
		assert.Equal(t, []Operation{
			{Verb: VerbInstall, Target: "a"},
			{Verb: VerbEnable, Target: "b"},
			{Verb: VerbRemove, Target: "c"},
		}, ops)
	})
}

func TestBuildCaptureOperations(t *testing.T) {
	assert.Nil(t, BuildCaptureOperations[testItem]("flatpak", nil, "flatpak.json"))

	ops := BuildCaptureOperations("flatpak", items("x", "y"), "/home/u/.config/hostsync/flatpak.json")
	require.Len(t, ops, 3)
	assert.Equal(t, Operation{Subsystem: "flatpak", Verb: VerbTrack, Target: "x"}, ops[0])
	assert.Equal(t, Operation{Subsystem: "flatpak", Verb: VerbTrack, Target: "y"}, ops[1])
	assert.Equal(t, VerbWriteManifest, ops[2].Verb)
	assert.Equal(t, "/home/u/.config/hostsync/flatpak.json", ops[2].Target)
}
