package components

import (
	"context"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

// The interfaces below are the collaborator adapters the components drive. They
// return typed values only; concrete implementations live in pkg/adapters.

// FlatpakAdapter queries and mutates flatpak installations.
type FlatpakAdapter interface {
	ListApps(ctx context.Context) ([]manifest.FlatpakApp, error)
	ListRemotes(ctx context.Context) ([]manifest.FlatpakRemote, error)
	AddRemote(ctx context.Context, remote manifest.FlatpakRemote) error
	Install(ctx context.Context, app manifest.FlatpakApp) error
	Uninstall(ctx context.Context, id string) error
}

// ExtensionAdapter queries and mutates GNOME shell extensions.
type ExtensionAdapter interface {
	List(ctx context.Context) ([]manifest.Extension, error)
	Install(ctx context.Context, uuid string) error
	Uninstall(ctx context.Context, uuid string) error
	Enable(ctx context.Context, uuid string) error
	Disable(ctx context.Context, uuid string) error
}

// GSettingAdapter reads and writes configuration keys.
type GSettingAdapter interface {
	// Dump returns every readable key as "schema.key" mapped to its serialized value.
	Dump(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, schema, key, value string) error
	Reset(ctx context.Context, schema, key string) error
}

// SystemAdapter queries and mutates system packages. Mutations receive the
// package backend ("dnf" or "rpm-ostree") chosen for the invocation.
type SystemAdapter interface {
	List(ctx context.Context) ([]manifest.SystemItem, error)
	IsPresent(ctx context.Context, item manifest.SystemItem) (bool, error)
	Install(ctx context.Context, backend string, item manifest.SystemItem) error
	Remove(ctx context.Context, backend string, item manifest.SystemItem) error
}

// ShimAdapter reads and rewrites the shim directory.
type ShimAdapter interface {
	List(ctx context.Context) ([]manifest.Shim, error)
	// Regenerate replaces the whole shim directory with exactly shims.
	Regenerate(ctx context.Context, shims []manifest.Shim) error
}

// HomebrewAdapter queries and mutates a homebrew installation.
type HomebrewAdapter interface {
	ListFormulae(ctx context.Context) ([]string, error)
	ListTaps(ctx context.Context) ([]string, error)
	IsInstalled(ctx context.Context, formula string) (bool, error)
	Tap(ctx context.Context, tap string) error
	Install(ctx context.Context, formula string) error
	Uninstall(ctx context.Context, formula string) error
}
