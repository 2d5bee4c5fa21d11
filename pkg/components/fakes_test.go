package components

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

// calls records adapter mutations as "verb target" strings.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) record(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, entry)
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type fakeFlatpak struct {
	calls
	apps    []manifest.FlatpakApp
	remotes []manifest.FlatpakRemote
	scanErr error
	failOn  map[string]error
}

func (f *fakeFlatpak) ListApps(context.Context) ([]manifest.FlatpakApp, error) {
	return f.apps, f.scanErr
}

func (f *fakeFlatpak) ListRemotes(context.Context) ([]manifest.FlatpakRemote, error) {
	return f.remotes, nil
}

func (f *fakeFlatpak) AddRemote(_ context.Context, r manifest.FlatpakRemote) error {
	f.record("add-remote " + r.Name)
	return f.failOn[r.Name]
}

func (f *fakeFlatpak) Install(_ context.Context, app manifest.FlatpakApp) error {
	f.record("install " + app.ID)
	return f.failOn[app.ID]
}

func (f *fakeFlatpak) Uninstall(_ context.Context, id string) error {
	f.record("uninstall " + id)
	return f.failOn[id]
}

type fakeExtensions struct {
	calls
	exts []manifest.Extension
}

func (f *fakeExtensions) List(context.Context) ([]manifest.Extension, error) { return f.exts, nil }

func (f *fakeExtensions) Install(_ context.Context, uuid string) error {
	f.record("install " + uuid)
	return nil
}

func (f *fakeExtensions) Uninstall(_ context.Context, uuid string) error {
	f.record("uninstall " + uuid)
	return nil
}

func (f *fakeExtensions) Enable(_ context.Context, uuid string) error {
	f.record("enable " + uuid)
	return nil
}

func (f *fakeExtensions) Disable(_ context.Context, uuid string) error {
	f.record("disable " + uuid)
	return nil
}

type fakeGSettings struct {
	calls
	values map[string]string
}

func (f *fakeGSettings) Dump(context.Context) (map[string]string, error) { return f.values, nil }

func (f *fakeGSettings) Set(_ context.Context, schema, key, value string) error {
	f.record("set " + schema + "." + key + "=" + value)
	return nil
}

func (f *fakeGSettings) Reset(_ context.Context, schema, key string) error {
	f.record("reset " + schema + "." + key)
	return nil
}

type fakeSystem struct {
	calls
	items    []manifest.SystemItem
	absent   map[string]bool
	backends []string
}

func (f *fakeSystem) List(context.Context) ([]manifest.SystemItem, error) { return f.items, nil }

func (f *fakeSystem) IsPresent(_ context.Context, item manifest.SystemItem) (bool, error) {
	return !f.absent[item.ResourceID()], nil
}

func (f *fakeSystem) Install(_ context.Context, backend string, item manifest.SystemItem) error {
	f.record("install " + item.ResourceID())
	f.mu.Lock()
	f.backends = append(f.backends, backend)
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) Remove(_ context.Context, backend string, item manifest.SystemItem) error {
	f.record("remove " + item.ResourceID())
	f.mu.Lock()
	f.backends = append(f.backends, backend)
	f.mu.Unlock()
	return nil
}

type fakeShims struct {
	calls
	shims       []manifest.Shim
	regenerated []manifest.Shim
}

func (f *fakeShims) List(context.Context) ([]manifest.Shim, error) { return f.shims, nil }

func (f *fakeShims) Regenerate(_ context.Context, shims []manifest.Shim) error {
	f.record("regenerate")
	f.regenerated = shims
	return nil
}

type fakeHomebrew struct {
	calls
	formulae []string
	taps     []string
	scanErr  error
}

func (f *fakeHomebrew) ListFormulae(context.Context) ([]string, error) { return f.formulae, f.scanErr }
func (f *fakeHomebrew) ListTaps(context.Context) ([]string, error)     { return f.taps, nil }

func (f *fakeHomebrew) IsInstalled(_ context.Context, formula string) (bool, error) {
	for _, name := range f.formulae {
		if name == formula {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHomebrew) Tap(_ context.Context, tap string) error {
	f.record("tap " + tap)
	return nil
}

func (f *fakeHomebrew) Install(_ context.Context, formula string) error {
	f.record("install " + formula)
	return nil
}

func (f *fakeHomebrew) Uninstall(_ context.Context, formula string) error {
	f.record("uninstall " + formula)
	return nil
}

type fixture struct {
	store     *manifest.Store
	set       *Set
	flatpak   *fakeFlatpak
	extension *fakeExtensions
	gsetting  *fakeGSettings
	system    *fakeSystem
	shim      *fakeShims
	homebrew  *fakeHomebrew
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	systemDir := filepath.Join(root, "system")
	require.NoError(t, os.MkdirAll(systemDir, 0o755))

	f := &fixture{
		store:     manifest.NewStore(systemDir, filepath.Join(root, "user")),
		flatpak:   &fakeFlatpak{failOn: map[string]error{}},
		extension: &fakeExtensions{},
		gsetting:  &fakeGSettings{values: map[string]string{}},
		system:    &fakeSystem{absent: map[string]bool{}},
		shim:      &fakeShims{},
		homebrew:  &fakeHomebrew{},
	}
	f.set = NewSet(Options{
		Store:           f.store,
		Flatpak:         f.flatpak,
		Extension:       f.extension,
		GSetting:        f.gsetting,
		System:          f.system,
		Shim:            f.shim,
		Homebrew:        f.homebrew,
		GSettingSchemas: []string{"org.gnome.desktop.interface"},
		ShimDir:         filepath.Join(root, "shims"),
		PlanParallel:    3,
		Logger:          zerolog.Nop(),
	})
	return f
}

func (f *fixture) writeSystem(t *testing.T, subsystem, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.store.Path(manifest.LayerSystem, subsystem), []byte(content), 0o644))
}

func (f *fixture) writeUser(t *testing.T, subsystem, content string) {
	t.Helper()
	path := f.store.Path(manifest.LayerUser, subsystem)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeBlocker replaces dir with a regular file so nothing can be created inside it.
func writeBlocker(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.WriteFile(dir, []byte("blocked"), 0o644)
}
