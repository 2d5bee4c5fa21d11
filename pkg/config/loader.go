package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "HOSTSYNC_"

// DefaultSystemManifestDir is where image tooling installs the system layer.
const DefaultSystemManifestDir = "/usr/share/hostsync/manifests"

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "hostsync", "config.yaml")
}

// defaults returns the built-in configuration as dotted keys.
func defaults() map[string]interface{} {
	stateDir := filepath.Join(xdg.StateHome, "hostsync")
	return map[string]interface{}{
		"manifests.system_dir": DefaultSystemManifestDir,
		"manifests.user_dir":   filepath.Join(xdg.ConfigHome, "hostsync", "manifests"),
		"state_dir":            stateDir,
		"backend":              "auto",
		"sudo":                 true,
		"flatpak.user":         false,
		"homebrew.path":        "",
		"shims.dir":            filepath.Join(xdg.DataHome, "hostsync", "shims"),

		"baseline.ignore_patterns": []interface{}{
			"**.window-size",
			"**.window-position",
			"**.window-maximized",
			"**.last-*",
		},
		"baseline.ignored_namespaces": []interface{}{
			"org.gnome.software",
			"org.gnome.evolution-data-server",
		},

		"capture.gsetting_schemas": []interface{}{
			"org.gnome.desktop.interface",
			"org.gnome.desktop.wm.preferences",
			"org.gnome.desktop.peripherals.touchpad",
			"org.gnome.shell",
		},

		"execute.max_parallel":    1,
		"execute.plan_parallel":   6,
		"execute.command_timeout": "30m",

		"policy.enabled":      true,
		"policy.protected":    []interface{}{},
		"policy.max_removals": 0,

		"history.enabled": true,

		"telemetry.service_name":           "hostsync",
		"telemetry.logging.level":          "info",
		"telemetry.logging.format":         "console",
		"telemetry.logging.output":         "stderr",
		"telemetry.logging.caller":         false,
		"telemetry.logging.time_format":    "rfc3339",
		"telemetry.tracing.enabled":        false,
		"telemetry.tracing.exporter":       "none",
		"telemetry.tracing.sampling_rate":  1.0,
		"telemetry.tracing.export_timeout": "10s",
		"telemetry.tracing.insecure":       true,
		"telemetry.metrics.enabled":        true,
		"telemetry.metrics.namespace":      "hostsync",
		"telemetry.metrics.textfile":       "",
	}
}

// Load reads the configuration. An empty path means DefaultPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HOSTSYNC_EXECUTE__MAX_PARALLEL to execute.max_parallel.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func expandHome(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(xdg.Home, rest)
	}
	return path
}
