package display

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openfroyo/hostsync/pkg/baseline"
	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/policy"
	"github.com/openfroyo/hostsync/pkg/stores"
)

func plain(opts ...Option) (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, append([]Option{WithColor(false)}, opts...)...), &buf
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, ColorEnabled(&buf))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled(os.Stdout))
}

func TestStatus(t *testing.T) {
	r, buf := plain(WithVerbose(true))

	r.Status([]components.StatusResult{
		{
			Subsystem: components.Flatpak,
			Summary: components.DriftSummary{
				Subsystem: "flatpak",
				Counts:    engine.DriftCounts{Pending: 1, Untracked: 2, Synced: 3},
				ToInstall: []string{"org.gnome.Maps"},
				Untracked: []string{"com.spotify.Client", "org.videolan.VLC"},
			},
		},
		{Subsystem: components.System, Err: errors.New("rpm not found")},
	})

	out := buf.String()
	assert.Contains(t, out, "SUBSYSTEM")
	assert.Contains(t, out, "flatpak")
	assert.Contains(t, out, "  + org.gnome.Maps\n")
	assert.Contains(t, out, "  ? com.spotify.Client\n")
	assert.Contains(t, out, "system     error: rpm not found")
	assert.NotContains(t, out, "\x1b[")
}

func TestStatus_QuietOmitsIdentities(t *testing.T) {
	r, buf := plain()

	r.Status([]components.StatusResult{{
		Subsystem: components.Homebrew,
		Summary: components.DriftSummary{
			Counts:    engine.DriftCounts{Untracked: 1},
			Untracked: []string{"jq"},
		},
	}})

	assert.NotContains(t, buf.String(), "jq")
}

func TestPlan(t *testing.T) {
	r, buf := plain()

	desc := engine.Description{
		Operations: []engine.Operation{
			{Subsystem: "flatpak", Verb: engine.VerbInstall, Target: "org.gnome.Maps"},
			{Subsystem: "gsetting", Verb: engine.VerbSet, Target: "org.gnome.desktop.interface.gtk-theme", Detail: "Adwaita -> Adwaita-dark"},
		},
		Summary: "flatpak: 1 install\ngsetting: 1 set",
	}
	r.Plan(desc, []components.PlanFailure{{Subsystem: components.Extension, Err: errors.New("gnome-extensions missing")}})

	out := buf.String()
	assert.Contains(t, out, "Plan: 2 operation(s)")
	assert.Contains(t, out, "  flatpak: 1 install\n")
	assert.Contains(t, out, "install        flatpak org.gnome.Maps\n")
	assert.Contains(t, out, "(Adwaita -> Adwaita-dark)")
	assert.Contains(t, out, "not planned extension: gnome-extensions missing")
}

func TestPlan_Empty(t *testing.T) {
	r, buf := plain()
	r.Plan(engine.Description{}, nil)
	assert.Equal(t, "Nothing to do.\n", buf.String())
}

func TestPolicy(t *testing.T) {
	r, buf := plain()

	r.Policy(&policy.Result{
		Violations: []policy.Violation{{Policy: "protected-resources", Subsystem: "system", Target: "kernel", Message: "kernel is protected"}},
		Warnings:   []policy.Violation{{Policy: "large-capture", Message: "capture tracks 120 resources"}},
	})
	r.Policy(nil)

	out := buf.String()
	assert.Contains(t, out, "denied [protected-resources] kernel is protected (system kernel)\n")
	assert.Contains(t, out, "warning [large-capture] capture tracks 120 resources\n")
}

func TestReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	report := &engine.ExecutionReport{
		Status:      engine.RunStatusPartial,
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
		Results: []engine.OperationResult{
			{Operation: engine.Operation{Subsystem: "flatpak", Verb: engine.VerbInstall, Target: "a"}, Status: engine.OperationStatusSucceeded},
			{Operation: engine.Operation{Subsystem: "flatpak", Verb: engine.VerbInstall, Target: "b"}, Status: engine.OperationStatusFailed, Reason: "no remote"},
		},
		Fatal:   []*engine.EngineError{engine.NewFatalExecutionError("manifest write failed", nil)},
		Summary: engine.ReportSummary{Total: 2, Succeeded: 1, Failed: 1},
	}

	r, buf := plain()
	r.Report(report)
	out := buf.String()
	assert.NotContains(t, out, "flatpak a")
	assert.Contains(t, out, "failed    install flatpak b: no remote")
	assert.Contains(t, out, "fatal ")
	assert.Contains(t, out, "partial 1 succeeded, 1 failed, 0 skipped in 1.5s")

	r, buf = plain(WithVerbose(true))
	r.Report(report)
	assert.Contains(t, buf.String(), "succeeded install flatpak a")
}

func TestBaseline(t *testing.T) {
	r, buf := plain()
	r.Baseline(baseline.Report{
		Modified: []baseline.Modified{{Key: "org.gnome.desktop.interface.gtk-theme", Baseline: "'Adwaita'", Current: "'Adwaita-dark'"}},
		Added:    []baseline.Added{{Key: "org.gnome.shell.favorite-apps", Current: "[]"}},
		Removed:  []baseline.Removed{{Key: "org.gnome.desktop.wm.preferences.theme", Baseline: "'x'"}},
		Ignored:  2,
	})

	out := buf.String()
	assert.Contains(t, out, "~ org.gnome.desktop.interface.gtk-theme: 'Adwaita' -> 'Adwaita-dark'\n")
	assert.Contains(t, out, "+ org.gnome.shell.favorite-apps = []\n")
	assert.Contains(t, out, "- org.gnome.desktop.wm.preferences.theme (was 'x')\n")
	assert.Contains(t, out, "2 key(s) ignored\n")

	r, buf = plain()
	r.Baseline(baseline.Report{})
	assert.Equal(t, "No changes since baseline.\n", buf.String())
}

func TestRuns(t *testing.T) {
	r, buf := plain()
	r.Runs(nil)
	assert.Equal(t, "No runs recorded.\n", buf.String())

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r, buf = plain()
	r.Runs([]*stores.Run{{
		ID:          "0123456789abcdef",
		Kind:        engine.PlanKindApply,
		Status:      engine.RunStatusSucceeded,
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		Summary:     engine.ReportSummary{Succeeded: 4},
	}})
	out := buf.String()
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "01234567  apply    succeeded")
	assert.Contains(t, out, "4/0/0")
	assert.NotContains(t, out, "89abcdef")
}

func TestRunDetail(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r, buf := plain()
	r.RunDetail(&stores.Run{
		ID:          "run-1",
		Kind:        engine.PlanKindCapture,
		Status:      engine.RunStatusFailed,
		Hostname:    "workstation",
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
		Fatal:       []string{"writing manifest failed"},
	}, []*stores.OperationRecord{{
		Operation: engine.Operation{Subsystem: "homebrew", Verb: engine.VerbTrack, Target: "jq"},
		Status:    engine.OperationStatusSkipped,
		Reason:    "skipped: writing manifest failed",
	}})

	out := buf.String()
	assert.Contains(t, out, "Run run-1\n")
	assert.Contains(t, out, "  kind:     capture\n")
	assert.Contains(t, out, "  host:     workstation\n")
	assert.Contains(t, out, "  fatal writing manifest failed\n")
	assert.Contains(t, out, "skipped   track homebrew jq: skipped: writing manifest failed\n")
}
