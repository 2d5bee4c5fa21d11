package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

type response struct {
	out string
	err error
}

// fakeRunner answers commands from a script keyed by the full command line.
// Unscripted commands succeed with no output.
type fakeRunner struct {
	mu      sync.Mutex
	script  map[string]response
	history []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{script: make(map[string]response)}
}

func (f *fakeRunner) on(cmdline, out string, err error) {
	f.script[cmdline] = response{out: out, err: err}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, cmdline)
	r := f.script[cmdline]
	return r.out, r.err
}

func exitErr(code int) error {
	return &CommandError{Command: "fake", ExitCode: code, Err: errors.New("exit")}
}

func TestFlatpak_ListApps(t *testing.T) {
	r := newFakeRunner()
	r.on("flatpak list --user --app --columns=application,origin",
		"org.mozilla.firefox\tflathub\norg.gnome.Boxes\tfedora\n\n", nil)

	apps, err := NewFlatpak(r, true).ListApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []manifest.FlatpakApp{
		{ID: "org.mozilla.firefox", Remote: "flathub"},
		{ID: "org.gnome.Boxes", Remote: "fedora"},
	}, apps)
}

func TestFlatpak_Mutations(t *testing.T) {
	r := newFakeRunner()
	f := NewFlatpak(r, false)
	ctx := context.Background()

	require.NoError(t, f.AddRemote(ctx, manifest.FlatpakRemote{Name: "flathub", URL: "https://dl.flathub.org/repo/flathub.flatpakrepo"}))
	require.NoError(t, f.Install(ctx, manifest.FlatpakApp{ID: "org.gnome.Boxes", Remote: "flathub"}))
	require.NoError(t, f.Uninstall(ctx, "org.gnome.Boxes"))

	assert.Equal(t, []string{
		"flatpak remote-add --system --if-not-exists flathub https://dl.flathub.org/repo/flathub.flatpakrepo",
		"flatpak install --system --noninteractive -y flathub org.gnome.Boxes",
		"flatpak uninstall --system --noninteractive -y org.gnome.Boxes",
	}, r.history)
}

func TestFlatpak_ListError(t *testing.T) {
	r := newFakeRunner()
	r.on("flatpak remotes --user --columns=name,url", "", exitErr(1))

	_, err := NewFlatpak(r, true).ListRemotes(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
}

func TestExtensions_List(t *testing.T) {
	r := newFakeRunner()
	r.on("gnome-extensions list --user", "appindicator@ubuntu.com\nblur@aunetx\n", nil)
	r.on("gnome-extensions list --user --enabled", "blur@aunetx\n", nil)

	exts, err := NewExtensions(r).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []manifest.Extension{
		{UUID: "appindicator@ubuntu.com", Enabled: false},
		{UUID: "blur@aunetx", Enabled: true},
	}, exts)
}

func TestExtensions_Install(t *testing.T) {
	r := newFakeRunner()
	require.NoError(t, NewExtensions(r).Install(context.Background(), "blur@aunetx"))
	require.Len(t, r.history, 1)
	assert.Contains(t, r.history[0], "InstallRemoteExtension blur@aunetx")
}

func TestGSettings_Dump(t *testing.T) {
	r := newFakeRunner()
	r.on("gsettings list-recursively", strings.Join([]string{
		"org.gnome.desktop.interface color-scheme 'prefer-dark'",
		"org.gnome.shell favorite-apps ['firefox.desktop', 'org.gnome.Nautilus.desktop']",
		"garbage",
	}, "\n"), nil)

	values, err := NewGSettings(r).Dump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"org.gnome.desktop.interface.color-scheme": "'prefer-dark'",
		"org.gnome.shell.favorite-apps":            "['firefox.desktop', 'org.gnome.Nautilus.desktop']",
	}, values)
}

func TestGSettings_SetReset(t *testing.T) {
	r := newFakeRunner()
	g := NewGSettings(r)
	require.NoError(t, g.Set(context.Background(), "org.gnome.desktop.interface", "color-scheme", "'default'"))
	require.NoError(t, g.Reset(context.Background(), "org.gnome.desktop.interface", "color-scheme"))
	assert.Equal(t, []string{
		"gsettings set org.gnome.desktop.interface color-scheme 'default'",
		"gsettings reset org.gnome.desktop.interface color-scheme",
	}, r.history)
}

func TestSystem_ListDNF(t *testing.T) {
	repos := t.TempDir()
	for _, name := range []string{
		"_copr:copr.fedorainfracloud.org:atim:starship.repo",
		"_copr:copr.fedorainfracloud.org:group_kdesig:kde.repo",
		"fedora.repo",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(repos, name), []byte("[repo]\n"), 0o644))
	}

	r := newFakeRunner()
	r.on("dnf group list --installed --quiet", "ID                 Name               Installed\nc-development      C Development      yes\n", nil)
	r.on("dnf repoquery --userinstalled --queryformat %{name}\n", "vim-enhanced\nhtop\nhtop\n", nil)

	items, err := NewSystem(r, BackendDNF, WithReposDir(repos)).List(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(items))
	for _, i := range items {
		ids = append(ids, i.ResourceID())
	}
	assert.Equal(t, []string{
		"copr:@kdesig/kde",
		"copr:atim/starship",
		"group:c-development",
		"package:htop",
		"package:vim-enhanced",
	}, ids)
}

func TestSystem_ListRPMOSTree(t *testing.T) {
	r := newFakeRunner()
	r.on("rpm-ostree status --json", `{"deployments":[
		{"booted":false,"requested-packages":["zsh","htop"]},
		{"booted":true,"requested-packages":["htop"]}
	]}`, nil)

	items, err := NewSystem(r, BackendRPMOSTree, WithReposDir(t.TempDir())).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []manifest.SystemItem{
		{Kind: manifest.SystemKindPackage, Name: "htop"},
		{Kind: manifest.SystemKindPackage, Name: "zsh"},
	}, items)
	assert.NotContains(t, r.history, "dnf group list --installed --quiet")
}

func TestSystem_InstallRemove(t *testing.T) {
	cases := []struct {
		name    string
		backend string
		item    manifest.SystemItem
		install string
		remove  string
	}{
		{"dnf package", BackendDNF, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: "htop"},
			"sudo dnf install -y htop", "sudo dnf remove -y htop"},
		{"ostree package", BackendRPMOSTree, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: "htop"},
			"sudo rpm-ostree install --idempotent --allow-inactive -y htop", "sudo rpm-ostree uninstall --idempotent -y htop"},
		{"dnf group", BackendDNF, manifest.SystemItem{Kind: manifest.SystemKindGroup, Name: "c-development"},
			"sudo dnf group install -y c-development", "sudo dnf group remove -y c-development"},
		{"dnf copr", BackendDNF, manifest.SystemItem{Kind: manifest.SystemKindCopr, Name: "atim/starship"},
			"sudo dnf copr enable -y atim/starship", "sudo dnf copr remove -y atim/starship"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFakeRunner()
			s := NewSystem(r, tc.backend, WithPrivilegedRunner(WithSudo(r)))

			require.NoError(t, s.Install(context.Background(), tc.backend, tc.item))
			require.NoError(t, s.Remove(context.Background(), tc.backend, tc.item))
			assert.Equal(t, []string{tc.install, tc.remove}, r.history)
		})
	}
}

func TestSystem_UnsupportedOnOSTree(t *testing.T) {
	r := newFakeRunner()
	s := NewSystem(r, BackendRPMOSTree)

	err := s.Install(context.Background(), BackendRPMOSTree, manifest.SystemItem{Kind: manifest.SystemKindGroup, Name: "c-development"})
	assert.ErrorIs(t, err, ErrUnsupportedOnBackend)
	assert.Empty(t, r.history)
}

func TestSystem_IsPresent(t *testing.T) {
	r := newFakeRunner()
	r.on("rpm -q --quiet htop", "", nil)
	r.on("rpm -q --quiet gone", "", exitErr(1))
	r.on("rpm -q --quiet broken", "", errors.New("rpm not found"))
	s := NewSystem(r, BackendDNF, WithReposDir(t.TempDir()))
	ctx := context.Background()

	ok, err := s.IsPresent(ctx, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: "htop"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsPresent(ctx, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: "gone"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IsPresent(ctx, manifest.SystemItem{Kind: manifest.SystemKindPackage, Name: "broken"})
	assert.Error(t, err)
}

func TestShims_RegenerateAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	s := NewShims(dir)
	ctx := context.Background()

	require.NoError(t, s.Regenerate(ctx, []manifest.Shim{
		{Name: "node", Command: "distrobox enter dev -- node"},
		{Name: "firefox", Command: "flatpak run org.mozilla.firefox"},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handwritten"), []byte("#!/bin/sh\necho hi\n"), 0o755))

	shims, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Shim{
		{Name: "firefox", Command: "flatpak run org.mozilla.firefox"},
		{Name: "node", Command: "distrobox enter dev -- node"},
	}, shims)

	info, err := os.Stat(filepath.Join(dir, "node"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NoError(t, s.Regenerate(ctx, []manifest.Shim{{Name: "node", Command: "node22"}}))
	shims, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Shim{{Name: "node", Command: "node22"}}, shims)

	_, err = os.Stat(filepath.Join(dir, "handwritten"))
	assert.NoError(t, err, "unmanaged files are left alone")

	data, err := os.ReadFile(filepath.Join(dir, "node"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n# hostsync-shim: node22\nexec node22 \"$@\"\n", string(data))
}

func TestShims_RegenerateKeepsUnmanagedFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewShims(dir)
	ctx := context.Background()

	mine := "#!/bin/sh\necho my own tool\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mytool"), []byte(mine), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	err := s.Regenerate(ctx, []manifest.Shim{
		{Name: "mytool", Command: "podman"},
		{Name: "subdir", Command: "podman"},
		{Name: "toolbox", Command: "toolbox enter"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmanagedShim)
	assert.Contains(t, err.Error(), "mytool")
	assert.Contains(t, err.Error(), "subdir")

	data, err := os.ReadFile(filepath.Join(dir, "mytool"))
	require.NoError(t, err)
	assert.Equal(t, mine, string(data))

	shims, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Shim{{Name: "toolbox", Command: "toolbox enter"}}, shims)
}

func TestShims_RegenerateRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b"} {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "bin")
			err := NewShims(dir).Regenerate(context.Background(), []manifest.Shim{{Name: name, Command: "true"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid shim name")

			_, statErr := os.Stat(dir)
			assert.True(t, os.IsNotExist(statErr), "nothing is written")
		})
	}
}

func TestShims_ListMissingDir(t *testing.T) {
	shims, err := NewShims(filepath.Join(t.TempDir(), "absent")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, shims)
}

func TestHomebrew(t *testing.T) {
	r := newFakeRunner()
	r.on("brew leaves --installed-on-request", "gh\nhashicorp/tap/terraform\n", nil)
	r.on("brew tap", "hashicorp/tap\n", nil)
	r.on("brew list --formula --versions gh", "gh 2.60.0\n", nil)
	r.on("brew list --formula --versions jq", "", exitErr(1))
	h := NewHomebrew(r, "")
	ctx := context.Background()

	formulae, err := h.ListFormulae(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gh", "hashicorp/tap/terraform"}, formulae)

	taps, err := h.ListTaps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hashicorp/tap"}, taps)

	ok, err := h.IsInstalled(ctx, "gh")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsInstalled(ctx, "jq")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectHost(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "os-release"), []byte(
		"# comment\nNAME=\"Fedora Linux\"\nVERSION_ID=41\nID=fedora\nVARIANT_ID=silverblue\n"), 0o644))

	facts, err := DetectHost(root)
	require.NoError(t, err)
	assert.Equal(t, "Fedora Linux", facts.Name)
	assert.Equal(t, "41", facts.Version)
	assert.Equal(t, "silverblue", facts.VariantID)
	assert.False(t, facts.Immutable)
	assert.Equal(t, BackendDNF, facts.Backend())

	require.NoError(t, os.MkdirAll(filepath.Join(root, "run"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run", "ostree-booted"), nil, 0o644))

	facts, err = DetectHost(root)
	require.NoError(t, err)
	assert.True(t, facts.Immutable)
	assert.Equal(t, BackendRPMOSTree, facts.Backend())
}

func TestResolveBackend(t *testing.T) {
	immutable := HostFacts{Immutable: true}

	backend, err := ResolveBackend("auto", immutable)
	require.NoError(t, err)
	assert.Equal(t, BackendRPMOSTree, backend)

	backend, err = ResolveBackend(BackendDNF, immutable)
	require.NoError(t, err)
	assert.Equal(t, BackendDNF, backend)

	_, err = ResolveBackend("apt", immutable)
	assert.Error(t, err)
}

func TestCommandError_Message(t *testing.T) {
	err := &CommandError{Command: "dnf install -y htop", ExitCode: 1, Stderr: "No match for argument: htop"}
	assert.Equal(t, "dnf install -y htop: exit status 1: No match for argument: htop", err.Error())
	assert.Equal(t, -1, ExitCode(errors.New("plain")))
}
