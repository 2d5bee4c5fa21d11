package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/hostsync/pkg/manifest"
)

// Flatpak drives the flatpak command line for one installation.
type Flatpak struct {
	runner CommandRunner

	// installation is "--user" or "--system".
	installation string
}

// NewFlatpak returns a flatpak adapter. When user is true the per-user
// installation is managed, otherwise the system one.
func NewFlatpak(runner CommandRunner, user bool) *Flatpak {
	installation := "--system"
	if user {
		installation = "--user"
	}
	return &Flatpak{runner: runner, installation: installation}
}

// ListApps lists installed applications with the remote they came from.
func (f *Flatpak) ListApps(ctx context.Context) ([]manifest.FlatpakApp, error) {
	out, err := f.runner.Run(ctx, "flatpak", "list", f.installation, "--app", "--columns=application,origin")
	if err != nil {
		return nil, fmt.Errorf("failed to list flatpak applications: %w", err)
	}
	var apps []manifest.FlatpakApp
	for _, fields := range columns(out) {
		app := manifest.FlatpakApp{ID: fields[0]}
		if len(fields) > 1 {
			app.Remote = fields[1]
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// ListRemotes lists configured remotes.
func (f *Flatpak) ListRemotes(ctx context.Context) ([]manifest.FlatpakRemote, error) {
	out, err := f.runner.Run(ctx, "flatpak", "remotes", f.installation, "--columns=name,url")
	if err != nil {
		return nil, fmt.Errorf("failed to list flatpak remotes: %w", err)
	}
	var remotes []manifest.FlatpakRemote
	for _, fields := range columns(out) {
		remote := manifest.FlatpakRemote{Name: fields[0]}
		if len(fields) > 1 {
			remote.URL = fields[1]
		}
		remotes = append(remotes, remote)
	}
	return remotes, nil
}

// AddRemote adds a remote unless one with the same name exists.
func (f *Flatpak) AddRemote(ctx context.Context, remote manifest.FlatpakRemote) error {
	_, err := f.runner.Run(ctx, "flatpak", "remote-add", f.installation, "--if-not-exists", remote.Name, remote.URL)
	return err
}

// Install installs an application from its remote.
func (f *Flatpak) Install(ctx context.Context, app manifest.FlatpakApp) error {
	args := []string{"install", f.installation, "--noninteractive", "-y"}
	if app.Remote != "" {
		args = append(args, app.Remote)
	}
	_, err := f.runner.Run(ctx, "flatpak", append(args, app.ID)...)
	return err
}

// Uninstall removes an application.
func (f *Flatpak) Uninstall(ctx context.Context, id string) error {
	_, err := f.runner.Run(ctx, "flatpak", "uninstall", f.installation, "--noninteractive", "-y", id)
	return err
}

// columns splits tabular output into fields per line.
func columns(output string) [][]string {
	var rows [][]string
	for _, line := range lines(output) {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			rows = append(rows, fields)
		}
	}
	return rows
}
