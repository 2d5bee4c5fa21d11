package adapters

import "github.com/openfroyo/hostsync/pkg/components"

var (
	_ components.FlatpakAdapter   = (*Flatpak)(nil)
	_ components.ExtensionAdapter = (*Extensions)(nil)
	_ components.GSettingAdapter  = (*GSettings)(nil)
	_ components.SystemAdapter    = (*System)(nil)
	_ components.ShimAdapter      = (*Shims)(nil)
	_ components.HomebrewAdapter  = (*Homebrew)(nil)
)
