package manifest

import (
	"encoding/json"
	"strings"
)

// FlatpakRemote is a flatpak remote repository.
type FlatpakRemote struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

// FlatpakApp is an installed flatpak application.
type FlatpakApp struct {
	ID     string `json:"id" validate:"required"`
	Remote string `json:"remote,omitempty"`
}

// ResourceID returns the application id.
func (a FlatpakApp) ResourceID() string { return a.ID }

// FlatpakDocument is the flatpak manifest file.
type FlatpakDocument struct {
	Remotes []FlatpakRemote `json:"remotes,omitempty" validate:"dive"`
	Apps    []FlatpakApp    `json:"apps,omitempty" validate:"dive"`
}

// Merge overlays user on d. Apps merge by id with the user entry winning; remotes
// are unioned by name.
func (d FlatpakDocument) Merge(user FlatpakDocument) FlatpakDocument {
	return FlatpakDocument{
		Remotes: UnionBy(d.Remotes, user.Remotes, func(r FlatpakRemote) string { return r.Name }),
		Apps:    MergeResources(d.Apps, user.Apps, nil),
	}
}

// Extension is a GNOME shell extension and whether it should be enabled.
type Extension struct {
	UUID    string `json:"uuid" validate:"required"`
	Enabled bool   `json:"enabled"`
}

// ResourceID returns the extension uuid.
func (e Extension) ResourceID() string { return e.UUID }

// UnmarshalJSON defaults Enabled to true when the field is absent.
func (e *Extension) UnmarshalJSON(data []byte) error {
	type plain Extension
	decoded := plain{Enabled: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*e = Extension(decoded)
	return nil
}

// ExtensionDocument is the extension manifest file.
type ExtensionDocument struct {
	Extensions []Extension `json:"extensions,omitempty" validate:"dive"`
}

// Merge overlays user on d by uuid.
func (d ExtensionDocument) Merge(user ExtensionDocument) ExtensionDocument {
	return ExtensionDocument{Extensions: MergeResources(d.Extensions, user.Extensions, nil)}
}

// Setting is one configuration key with its serialized value.
type Setting struct {
	Schema string `json:"schema" validate:"required"`
	Key    string `json:"key" validate:"required"`
	Value  string `json:"value"`
}

// ResourceID returns "schema.key".
func (s Setting) ResourceID() string { return s.Schema + "." + s.Key }

// GSettingDocument is the gsetting manifest file.
type GSettingDocument struct {
	Settings []Setting `json:"settings,omitempty" validate:"dive"`
}

// Merge overlays user on d by schema.key.
func (d GSettingDocument) Merge(user GSettingDocument) GSettingDocument {
	return GSettingDocument{Settings: MergeResources(d.Settings, user.Settings, nil)}
}

// SystemKind tags the variants of a system item.
type SystemKind string

const (
	// SystemKindPackage is an installable package.
	SystemKindPackage SystemKind = "package"

	// SystemKindGroup is a package group.
	SystemKindGroup SystemKind = "group"

	// SystemKindCopr is a third-party COPR repository.
	SystemKindCopr SystemKind = "copr"
)

// SystemItem is a system-level item: a package, a package group or a COPR repository.
type SystemItem struct {
	Kind SystemKind
	Name string
}

// ResourceID returns the kind-prefixed key, e.g. "package:htop".
func (i SystemItem) ResourceID() string { return string(i.Kind) + ":" + i.Name }

// ParseSystemItem parses a kind-prefixed key. Unprefixed names are packages.
func ParseSystemItem(id string) SystemItem {
	kind, name, ok := strings.Cut(id, ":")
	if !ok {
		return SystemItem{Kind: SystemKindPackage, Name: id}
	}
	switch SystemKind(kind) {
	case SystemKindPackage, SystemKindGroup, SystemKindCopr:
		return SystemItem{Kind: SystemKind(kind), Name: name}
	default:
		return SystemItem{Kind: SystemKindPackage, Name: id}
	}
}

// SystemDocument is the system manifest file.
type SystemDocument struct {
	Copr     []string `json:"copr,omitempty" validate:"dive,required"`
	Groups   []string `json:"groups,omitempty" validate:"dive,required"`
	Packages []string `json:"packages,omitempty" validate:"dive,required"`
}

// Items flattens the document into tagged items: repositories first, then groups,
// then packages.
func (d SystemDocument) Items() []SystemItem {
	items := make([]SystemItem, 0, len(d.Copr)+len(d.Groups)+len(d.Packages))
	for _, c := range d.Copr {
		items = append(items, SystemItem{Kind: SystemKindCopr, Name: c})
	}
	for _, g := range d.Groups {
		items = append(items, SystemItem{Kind: SystemKindGroup, Name: g})
	}
	for _, p := range d.Packages {
		items = append(items, SystemItem{Kind: SystemKindPackage, Name: p})
	}
	return items
}

// Add records item in the matching list unless it is already there.
func (d *SystemDocument) Add(item SystemItem) {
	switch item.Kind {
	case SystemKindCopr:
		d.Copr = UnionStrings(d.Copr, []string{item.Name})
	case SystemKindGroup:
		d.Groups = UnionStrings(d.Groups, []string{item.Name})
	default:
		d.Packages = UnionStrings(d.Packages, []string{item.Name})
	}
}

// Merge unions every list of user into d.
func (d SystemDocument) Merge(user SystemDocument) SystemDocument {
	return SystemDocument{
		Copr:     UnionStrings(d.Copr, user.Copr),
		Groups:   UnionStrings(d.Groups, user.Groups),
		Packages: UnionStrings(d.Packages, user.Packages),
	}
}

// Shim is a wrapper on PATH that forwards to a command on the host.
type Shim struct {
	Name    string `json:"name" validate:"required,excludesall=/,ne=.,ne=.."`
	Command string `json:"command" validate:"required"`
}

// ResourceID returns the shim name.
func (s Shim) ResourceID() string { return s.Name }

// ShimDocument is the shim manifest file.
type ShimDocument struct {
	Shims []Shim `json:"shims,omitempty" validate:"dive"`
}

// Merge overlays user on d by shim name.
func (d ShimDocument) Merge(user ShimDocument) ShimDocument {
	return ShimDocument{Shims: MergeResources(d.Shims, user.Shims, nil)}
}

// Formula is a homebrew formula.
type Formula struct {
	Name string
}

// ResourceID returns the formula name.
func (f Formula) ResourceID() string { return f.Name }

// HomebrewDocument is the homebrew manifest file.
type HomebrewDocument struct {
	Taps     []string `json:"taps,omitempty" validate:"dive,required"`
	Formulae []string `json:"formulae,omitempty" validate:"dive,required"`
}

// Items returns the declared formulae.
func (d HomebrewDocument) Items() []Formula {
	items := make([]Formula, 0, len(d.Formulae))
	for _, f := range d.Formulae {
		items = append(items, Formula{Name: f})
	}
	return items
}

// Merge unions taps and formulae.
func (d HomebrewDocument) Merge(user HomebrewDocument) HomebrewDocument {
	return HomebrewDocument{
		Taps:     UnionStrings(d.Taps, user.Taps),
		Formulae: UnionStrings(d.Formulae, user.Formulae),
	}
}
