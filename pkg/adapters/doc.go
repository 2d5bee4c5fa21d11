// Package adapters implements the collaborator adapters of each subsystem on top of
// the host's command-line tools: flatpak, gnome-extensions, gsettings, dnf,
// rpm-ostree and brew. Every command goes through a CommandRunner so tests can
// substitute scripted output.
package adapters
