package adapters

import (
	"context"
	"fmt"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

const (
	shellExtensionsDest = "org.gnome.Shell.Extensions"
	shellExtensionsPath = "/org/gnome/Shell/Extensions"
)

// Extensions drives gnome-extensions for user-installed shell extensions.
type Extensions struct {
	runner CommandRunner
}

// NewExtensions returns an extension adapter.
func NewExtensions(runner CommandRunner) *Extensions {
	return &Extensions{runner: runner}
}

// List returns user extensions with their enabled flag.
func (e *Extensions) List(ctx context.Context) ([]manifest.Extension, error) {
	all, err := e.runner.Run(ctx, "gnome-extensions", "list", "--user")
	if err != nil {
		return nil, fmt.Errorf("failed to list extensions: %w", err)
	}
	enabledOut, err := e.runner.Run(ctx, "gnome-extensions", "list", "--user", "--enabled")
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled extensions: %w", err)
	}

	enabled := make(map[string]bool)
	for _, uuid := range lines(enabledOut) {
		enabled[uuid] = true
	}

	var exts []manifest.Extension
	for _, uuid := range lines(all) {
		exts = append(exts, manifest.Extension{UUID: uuid, Enabled: enabled[uuid]})
	}
	return exts, nil
}

// Install asks the running shell to download and install an extension from
// extensions.gnome.org.
func (e *Extensions) Install(ctx context.Context, uuid string) error {
	_, err := e.runner.Run(ctx, "gdbus", "call", "--session",
		"--dest", shellExtensionsDest,
		"--object-path", shellExtensionsPath,
		"--method", shellExtensionsDest+".InstallRemoteExtension",
		uuid)
	return err
}

// Uninstall removes an extension.
func (e *Extensions) Uninstall(ctx context.Context, uuid string) error {
	_, err := e.runner.Run(ctx, "gnome-extensions", "uninstall", uuid)
	return err
}

// Enable enables an extension.
func (e *Extensions) Enable(ctx context.Context, uuid string) error {
	_, err := e.runner.Run(ctx, "gnome-extensions", "enable", uuid)
	return err
}

// Disable disables an extension.
func (e *Extensions) Disable(ctx context.Context, uuid string) error {
	_, err := e.runner.Run(ctx, "gnome-extensions", "disable", uuid)
	return err
}
