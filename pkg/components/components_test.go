package components

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/manifest"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

func opTargets(desc engine.Description) []string {
	out := make([]string, 0, len(desc.Operations))
	for _, op := range desc.Operations {
		out = append(out, string(op.Verb)+" "+op.Target)
	}
	return out
}

func TestSystem_PresenceDrift(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "system", `{"packages": ["pkgA", "pkgB"]}`)
	f.system.items = []manifest.SystemItem{
		{Kind: manifest.SystemKindPackage, Name: "pkgB"},
		{Kind: manifest.SystemKindPackage, Name: "pkgC"},
	}
	ctx := context.Background()

	counts, err := f.set.Status(ctx, System)
	require.NoError(t, err)
	assert.Equal(t, engine.DriftCounts{Pending: 1, Untracked: 1, Synced: 1}, counts)

	drift, err := f.set.Drift(ctx, System)
	require.NoError(t, err)
	assert.Equal(t, []string{"package:pkgA"}, drift.ToInstall)
	assert.Equal(t, []string{"package:pkgC"}, drift.Untracked)

	plan, err := f.set.PlanApply(ctx, System, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"install package:pkgA"}, opTargets(plan.Describe()))

	pruned, err := f.set.PlanApply(ctx, System, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"install package:pkgA", "remove package:pkgC"}, opTargets(pruned.Describe()))
}

func TestSystem_ExecuteUsesBackendAndPrecheck(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "system", `{"copr": ["atim/starship"], "packages": ["starship"]}`)
	f.system.items = []manifest.SystemItem{
		{Kind: manifest.SystemKindPackage, Name: "nano"},
		{Kind: manifest.SystemKindPackage, Name: "vim"},
	}
	f.system.absent["package:vim"] = true

	plan, err := f.set.PlanApply(context.Background(), System, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"add-repo copr:atim/starship",
		"install package:starship",
		"remove package:nano",
		"remove package:vim",
	}, opTargets(plan.Describe()))

	ec := engine.NewExecContext()
	ec.Backend = "rpm-ostree"
	report, err := plan.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, []string{"install copr:atim/starship", "install package:starship", "remove package:nano"}, f.system.all())
	assert.Equal(t, []string{"rpm-ostree", "rpm-ostree", "rpm-ostree"}, f.system.backends)
	assert.Equal(t, engine.OperationStatusSkipped, report.Results[3].Status)
	assert.Equal(t, engine.RunStatusPartial, report.Status)
}

func TestExtension_RichStateDrift(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "extension", `{"extensions": [
		{"uuid": "dash-to-dock@micxgx.gmail.com"},
		{"uuid": "blur-my-shell@aunetx", "enabled": false},
		{"uuid": "caffeine@patapon.info"}
	]}`)
	f.extension.exts = []manifest.Extension{
		{UUID: "dash-to-dock@micxgx.gmail.com", Enabled: true},
		{UUID: "blur-my-shell@aunetx", Enabled: true},
		{UUID: "gsconnect@andyholmes.github.io", Enabled: true},
	}

	counts, err := f.set.Status(context.Background(), Extension)
	require.NoError(t, err)
	assert.Equal(t, engine.DriftCounts{Pending: 2, Untracked: 1, Synced: 1}, counts)

	plan, err := f.set.PlanApply(context.Background(), Extension, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"install caffeine@patapon.info",
		"enable caffeine@patapon.info",
		"disable blur-my-shell@aunetx",
	}, opTargets(plan.Describe()))

	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"install caffeine@patapon.info",
		"enable caffeine@patapon.info",
		"disable blur-my-shell@aunetx",
	}, f.extension.all())
}

func TestFlatpak_PreambleAddsMissingRemotes(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "flatpak", `{
		"remotes": [
			{"name": "flathub", "url": "https://dl.flathub.org/repo/"},
			{"name": "gnome-nightly", "url": "https://nightly.gnome.org/gnome-nightly.flatpakrepo"}
		],
		"apps": [{"id": "org.gnome.Maps", "remote": "gnome-nightly"}]
	}`)
	f.flatpak.remotes = []manifest.FlatpakRemote{{Name: "flathub", URL: "https://dl.flathub.org/repo/"}}

	plan, err := f.set.PlanApply(context.Background(), Flatpak, false)
	require.NoError(t, err)
	desc := plan.Describe()
	assert.Equal(t, []string{"add-repo gnome-nightly", "install org.gnome.Maps"}, opTargets(desc))
	assert.Equal(t, "flatpak: 1 add-repo, 1 install", desc.Summary)

	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"add-remote gnome-nightly", "install org.gnome.Maps"}, f.flatpak.all())
}

func TestFlatpak_RemoteFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "flatpak", `{
		"remotes": [{"name": "gnome-nightly", "url": "https://nightly.gnome.org/repo/"}],
		"apps": [{"id": "org.gnome.Maps"}, {"id": "org.gnome.Weather"}]
	}`)
	f.flatpak.failOn["gnome-nightly"] = errors.New("network unreachable")

	plan, err := f.set.PlanApply(context.Background(), Flatpak, false)
	require.NoError(t, err)
	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"add-remote gnome-nightly"}, f.flatpak.all())
	assert.Equal(t, 2, report.Summary.Skipped)
	assert.True(t, report.HasFatal())
}

func TestGSetting_ScopeAndValues(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "gsetting", `{"settings": [
		{"schema": "org.gnome.desktop.interface", "key": "gtk-theme", "value": "'Adwaita-dark'"},
		{"schema": "org.gnome.mutter", "key": "edge-tiling", "value": "true"}
	]}`)
	f.gsetting.values = map[string]string{
		"org.gnome.desktop.interface.gtk-theme":    "'Adwaita'",
		"org.gnome.desktop.interface.clock-format": "'24h'",
		"org.gnome.mutter.edge-tiling":             "true",
		"org.gnome.nautilus.preferences.view":      "'list'",
	}

	drift, err := f.set.Drift(context.Background(), GSetting)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.gnome.desktop.interface.gtk-theme"}, drift.ToUpdate)
	assert.Equal(t, []string{"org.gnome.desktop.interface.clock-format"}, drift.Untracked)
	assert.Equal(t, 1, drift.Counts.Synced)

	plan, err := f.set.PlanApply(context.Background(), GSetting, true)
	require.NoError(t, err)
	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"set org.gnome.desktop.interface.gtk-theme='Adwaita-dark'",
		"reset org.gnome.desktop.interface.clock-format",
	}, f.gsetting.all())
}

func TestGSetting_EmptyFilterCapturesNothing(t *testing.T) {
	f := newFixture(t)
	f.gsetting.values = map[string]string{"org.gnome.desktop.interface.clock-format": "'12h'"}

	doc, ok := f.set.GSetting.Capture([]manifest.Setting{{Schema: "org.gnome.desktop.interface", Key: "clock-format"}}, GSettingFilter{})
	assert.False(t, ok)
	assert.Nil(t, doc)

	plan, err := f.set.PlanCapture(context.Background(), GSetting, CaptureOptions{})
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestGSetting_CaptureWithKeysOutsideScope(t *testing.T) {
	f := newFixture(t)
	f.gsetting.values = map[string]string{
		"org.gnome.desktop.interface.clock-format": "'12h'",
		"org.gnome.shell.favorite-apps":            "['firefox.desktop']",
		"org.gnome.mutter.edge-tiling":             "false",
	}

	plan, err := f.set.PlanCapture(context.Background(), GSetting, CaptureOptions{
		GSetting: GSettingFilter{Keys: []string{"org.gnome.shell.favorite-apps"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"track org.gnome.shell.favorite-apps",
		"write-manifest " + f.store.Path(manifest.LayerUser, "gsetting"),
	}, opTargets(plan.Describe()))

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusSucceeded, report.Status)

	user, err := manifest.LoadUser[manifest.GSettingDocument](f.store, "gsetting")
	require.NoError(t, err)
	assert.Equal(t, []manifest.Setting{
		{Schema: "org.gnome.shell", Key: "favorite-apps", Value: "['firefox.desktop']"},
	}, user.Settings)
}

func TestShim_RegeneratesOnAnyDrift(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "shim", `{"shims": [
		{"name": "podman", "command": "flatpak-spawn --host podman"},
		{"name": "code", "command": "flatpak run com.visualstudio.code"}
	]}`)
	f.shim.shims = []manifest.Shim{
		{Name: "podman", Command: "flatpak-spawn --host podman"},
		{Name: "stale", Command: "old"},
	}

	plan, err := f.set.PlanApply(context.Background(), Shim, false)
	require.NoError(t, err)
	desc := plan.Describe()
	require.Len(t, desc.Operations, 1)
	assert.Equal(t, engine.VerbRegenerate, desc.Operations[0].Verb)

	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, f.shim.regenerated, 2)
}

func TestShim_PlanIsInstrumented(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "shim", `{"shims": [{"name": "podman", "command": "podman"}]}`)

	var buf bytes.Buffer
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{}, "hostsync", "test")
	require.NoError(t, err)
	tel := &telemetry.Telemetry{
		Logger: telemetry.NewLoggerTo(telemetry.LoggingConfig{Level: "debug", Format: "json"}, &buf),
		Tracer: tracer,
	}

	_, err = f.set.PlanApply(tel.WithContext(context.Background()), Shim, false)
	require.NoError(t, err)

	var planned bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["operation"] == "plan" && entry["subsystem"] == "shim" && entry["kind"] == "apply" {
			planned = true
		}
	}
	assert.True(t, planned, "shim planning runs inside a plan operation")
}

func TestShim_InSyncIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "shim", `{"shims": [{"name": "podman", "command": "podman"}]}`)
	f.shim.shims = []manifest.Shim{{Name: "podman", Command: "podman"}}

	plan, err := f.set.PlanApply(context.Background(), Shim, true)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestShim_NoCapture(t *testing.T) {
	f := newFixture(t)
	f.shim.shims = []manifest.Shim{{Name: "podman", Command: "podman"}}

	assert.False(t, f.set.Shim.SupportsCapture())
	doc, ok := f.set.Shim.Capture(f.shim.shims, NoFilter{})
	assert.False(t, ok)
	assert.Nil(t, doc)

	plan, err := f.set.PlanCapture(context.Background(), Shim, CaptureOptions{})
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestHomebrew_TapsAndPrecheck(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "homebrew", `{"taps": ["homebrew/core"], "formulae": ["jq"]}`)
	f.writeUser(t, "homebrew", `{"taps": ["hashicorp/tap"], "formulae": ["hashicorp/tap/terraform"]}`)
	f.homebrew.taps = []string{"homebrew/core"}
	f.homebrew.formulae = []string{"jq", "wget"}

	plan, err := f.set.PlanApply(context.Background(), Homebrew, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"add-repo hashicorp/tap",
		"install hashicorp/tap/terraform",
		"remove wget",
	}, opTargets(plan.Describe()))

	f.homebrew.formulae = []string{"jq"}
	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tap hashicorp/tap", "install hashicorp/tap/terraform"}, f.homebrew.all())
	assert.Equal(t, engine.OperationStatusSkipped, report.Results[2].Status)
}

func TestCapture_RecordsUntrackedInUserLayer(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "flatpak", `{"apps": [{"id": "org.gnome.Maps"}]}`)
	f.writeUser(t, "flatpak", `{"apps": [{"id": "org.gnome.Weather"}]}`)
	f.flatpak.apps = []manifest.FlatpakApp{
		{ID: "org.gnome.Maps", Remote: "flathub"},
		{ID: "com.spotify.Client", Remote: "flathub"},
	}

	plan, err := f.set.PlanCapture(context.Background(), Flatpak, CaptureOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"track com.spotify.Client",
		"write-manifest " + f.store.Path(manifest.LayerUser, "flatpak"),
	}, opTargets(plan.Describe()))

	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	user, err := manifest.LoadUser[manifest.FlatpakDocument](f.store, "flatpak")
	require.NoError(t, err)
	assert.Equal(t, []manifest.FlatpakApp{
		{ID: "org.gnome.Weather"},
		{ID: "com.spotify.Client", Remote: "flathub"},
	}, user.Apps)

	system, err := f.store.ReadLayer(manifest.LayerSystem, "flatpak", &manifest.FlatpakDocument{})
	require.NoError(t, err)
	assert.True(t, system)

	counts, err := f.set.Status(context.Background(), Flatpak)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Untracked)
}

func TestCapture_WriteFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.extension.exts = []manifest.Extension{{UUID: "caffeine@patapon.info", Enabled: true}}

	plan, err := f.set.PlanCapture(context.Background(), Extension, CaptureOptions{})
	require.NoError(t, err)

	// A file where the user directory should be makes the write fail.
	require.NoError(t, writeBlocker(f.store.UserDir()))

	report, err := plan.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Fatal, 1)
	assert.Equal(t, engine.ErrCodeManifestWrite, report.Fatal[0].Code)
	assert.Len(t, report.Failures(), 1)
}

func TestCapture_SystemKinds(t *testing.T) {
	f := newFixture(t)
	f.system.items = []manifest.SystemItem{
		{Kind: manifest.SystemKindCopr, Name: "atim/starship"},
		{Kind: manifest.SystemKindPackage, Name: "starship"},
	}

	plan, err := f.set.PlanCapture(context.Background(), System, CaptureOptions{})
	require.NoError(t, err)
	_, err = plan.Execute(context.Background(), nil)
	require.NoError(t, err)

	user, err := manifest.LoadUser[manifest.SystemDocument](f.store, "system")
	require.NoError(t, err)
	assert.Equal(t, []string{"atim/starship"}, user.Copr)
	assert.Equal(t, []string{"starship"}, user.Packages)
}

func TestDispatch_UnknownSubsystem(t *testing.T) {
	f := newFixture(t)
	bogus := Subsystem(42)

	_, err := f.set.Status(context.Background(), bogus)
	assert.ErrorIs(t, err, engine.ErrUnknownSubsystem)

	_, err = f.set.PlanApply(context.Background(), bogus, false)
	assert.ErrorIs(t, err, engine.ErrUnknownSubsystem)

	_, err = f.set.PlanCapture(context.Background(), bogus, CaptureOptions{})
	assert.ErrorIs(t, err, engine.ErrUnknownSubsystem)

	_, err = f.set.PlanAll(context.Background(), PlanRequest{Kind: engine.PlanKindApply, Subsystems: []Subsystem{bogus}})
	assert.ErrorIs(t, err, engine.ErrUnknownSubsystem)

	_, err = Parse("snap")
	assert.ErrorIs(t, err, engine.ErrUnknownSubsystem)
}

func TestStatusAll_IsolatesScanErrors(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "flatpak", `{"apps": [{"id": "org.gnome.Maps"}]}`)
	f.homebrew.scanErr = errors.New("brew: command not found")
	f.writeUser(t, "system", `{not json`)

	results := f.set.StatusAll(context.Background(), All())
	require.Len(t, results, 6)

	for i, sub := range All() {
		assert.Equal(t, sub, results[i].Subsystem)
	}
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Summary.Counts.Pending)
	assert.True(t, engine.IsManifestError(results[3].Err))
	assert.True(t, engine.IsScanError(results[5].Err))
	assert.NoError(t, results[1].Err)
}

func TestPlanAll_ComposesInCanonicalOrder(t *testing.T) {
	f := newFixture(t)
	f.writeSystem(t, "flatpak", `{"apps": [{"id": "org.gnome.Maps"}]}`)
	f.writeSystem(t, "homebrew", `{"formulae": ["jq"]}`)
	f.writeSystem(t, "system", `{"packages": ["htop"]}`)
	f.flatpak.scanErr = errors.New("flatpak: not installed")

	result, err := f.set.PlanAll(context.Background(), PlanRequest{
		Kind:       engine.PlanKindApply,
		Subsystems: All(),
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, Flatpak, result.Failures[0].Subsystem)
	assert.True(t, engine.IsScanError(result.Failures[0].Err))

	assert.Equal(t, 2, result.Plan.Len())
	assert.Equal(t, []string{"install package:htop", "install jq"}, opTargets(result.Plan.Describe()))
}

func TestParseList(t *testing.T) {
	subs, err := ParseList([]string{"homebrew", "flatpak", "homebrew"})
	require.NoError(t, err)
	assert.Equal(t, []Subsystem{Flatpak, Homebrew}, subs)

	subs, err = ParseList(nil)
	require.NoError(t, err)
	assert.Equal(t, All(), subs)
}
