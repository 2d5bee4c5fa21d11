package components

import (
	"fmt"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Subsystem enumerates the closed roster of managed subsystems.
type Subsystem int

const (
	// Flatpak manages flatpak applications and their remotes.
	Flatpak Subsystem = iota

	// Extension manages GNOME shell extensions and whether they are enabled.
	Extension

	// GSetting manages configuration keys.
	GSetting

	// System manages system packages, package groups and COPR repositories.
	System

	// Shim manages wrappers on PATH that forward to host commands.
	Shim

	// Homebrew manages homebrew formulae and taps.
	Homebrew
)

var canonical = []Subsystem{Flatpak, Extension, GSetting, System, Shim, Homebrew}

// All returns every subsystem in canonical order.
func All() []Subsystem {
	out := make([]Subsystem, len(canonical))
	copy(out, canonical)
	return out
}

// String returns the subsystem name used in manifests, logs and output.
func (s Subsystem) String() string {
	switch s {
	case Flatpak:
		return "flatpak"
	case Extension:
		return "extension"
	case GSetting:
		return "gsetting"
	case System:
		return "system"
	case Shim:
		return "shim"
	case Homebrew:
		return "homebrew"
	default:
		return fmt.Sprintf("subsystem(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Subsystem) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%s: %w", s, engine.ErrUnknownSubsystem)
	}
	return []byte(s.String()), nil
}

// Valid reports whether s is part of the roster.
func (s Subsystem) Valid() bool {
	return s >= Flatpak && s <= Homebrew
}

// Parse returns the subsystem called name.
func Parse(name string) (Subsystem, error) {
	for _, s := range canonical {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, engine.ErrUnknownSubsystem)
}

// ParseList parses names, returning them in canonical order without duplicates.
// An empty list selects every subsystem.
func ParseList(names []string) ([]Subsystem, error) {
	if len(names) == 0 {
		return All(), nil
	}
	selected := make(map[Subsystem]bool, len(names))
	for _, n := range names {
		s, err := Parse(n)
		if err != nil {
			return nil, err
		}
		selected[s] = true
	}
	out := make([]Subsystem, 0, len(selected))
	for _, s := range canonical {
		if selected[s] {
			out = append(out, s)
		}
	}
	return out, nil
}
