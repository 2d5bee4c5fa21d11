// Package manifest stores the desired state of every subsystem as two JSON layers.
//
// The system layer lives in a read-only directory supplied by image tooling; the
// user layer lives in the user's configuration directory and is the only one the
// engine writes. Each subsystem has one file per layer, named after the subsystem:
//
//	/usr/share/hostsync/manifests/flatpak.json   (system)
//	~/.config/hostsync/manifests/flatpak.json    (user)
//
// A missing file is an empty layer. A file that does not parse or fails its schema
// is reported as an *Error naming the file; it is never skipped silently.
//
// Loading merges the layers: for a given identity the user entry wins outright,
// while list collections such as flatpak remotes and homebrew taps are unioned.
package manifest
