package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/hostsync/pkg/baseline"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

// Config is the complete hostsync configuration.
type Config struct {
	Manifests ManifestsConfig `koanf:"manifests"`

	// StateDir holds the baseline, the history database and other state.
	StateDir string `koanf:"state_dir" validate:"required"`

	// Backend is the package backend: auto, dnf or rpm-ostree.
	Backend string `koanf:"backend" validate:"oneof=auto dnf rpm-ostree"`

	// Sudo runs system package mutations through sudo.
	Sudo bool `koanf:"sudo"`

	Flatpak  FlatpakConfig  `koanf:"flatpak"`
	Homebrew HomebrewConfig `koanf:"homebrew"`
	Shims    ShimsConfig    `koanf:"shims"`
	Baseline BaselineConfig `koanf:"baseline"`
	Capture  CaptureConfig  `koanf:"capture"`
	Execute  ExecuteConfig  `koanf:"execute"`
	Policy   PolicyConfig   `koanf:"policy"`
	History  HistoryConfig  `koanf:"history"`

	Telemetry telemetry.Config `koanf:"telemetry"`
}

// ManifestsConfig locates the two manifest layers.
type ManifestsConfig struct {
	// SystemDir is the read-only layer shipped with the image.
	SystemDir string `koanf:"system_dir" validate:"required"`

	// UserDir is the writable personal layer.
	UserDir string `koanf:"user_dir" validate:"required"`
}

// FlatpakConfig selects the flatpak installation.
type FlatpakConfig struct {
	// User manages the per-user installation instead of the system one.
	User bool `koanf:"user"`
}

// HomebrewConfig locates brew.
type HomebrewConfig struct {
	// Path to the brew binary. Empty means brew on PATH.
	Path string `koanf:"path"`
}

// ShimsConfig locates the shim directory.
type ShimsConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// BaselineConfig configures the configuration-key baseline.
type BaselineConfig struct {
	// Path of the baseline snapshot. Defaults to <state_dir>/baseline.json.
	Path string `koanf:"path"`

	baseline.IgnoreRules `koanf:",squash"`
}

// CaptureConfig configures capture.
type CaptureConfig struct {
	// GSettingSchemas is the allow-list of schemas whose keys are observed.
	GSettingSchemas []string `koanf:"gsetting_schemas"`
}

// ExecuteConfig tunes planning and execution.
type ExecuteConfig struct {
	// MaxParallel bounds concurrently executing sub-plans. 1 is sequential.
	MaxParallel int `koanf:"max_parallel" validate:"min=1,max=16"`

	// PlanParallel bounds concurrently planning subsystems.
	PlanParallel int `koanf:"plan_parallel" validate:"min=1,max=16"`

	// CommandTimeout bounds every external command. Zero means no limit.
	CommandTimeout time.Duration `koanf:"command_timeout" validate:"min=0"`
}

// PolicyConfig configures the plan policy gate.
type PolicyConfig struct {
	Enabled bool `koanf:"enabled"`

	// Protected lists resource targets that must never be removed, e.g.
	// "package:kernel" or "org.mozilla.firefox". Globs are allowed.
	Protected []string `koanf:"protected"`

	// MaxRemovals denies plans removing more resources. Zero means no limit.
	MaxRemovals int `koanf:"max_removals" validate:"min=0"`

	// Dir holds additional .rego policies.
	Dir string `koanf:"dir"`
}

// HistoryConfig configures the execution history store.
type HistoryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Path of the SQLite database. Defaults to <state_dir>/history.db.
	Path string `koanf:"path"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := baseline.NewMatcher(c.Baseline.IgnoreRules); err != nil {
		return fmt.Errorf("invalid configuration: baseline: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: telemetry: %w", err)
	}
	return nil
}

// finalize fills the paths derived from other settings.
func (c *Config) finalize() {
	c.StateDir = expandHome(c.StateDir)
	c.Manifests.SystemDir = expandHome(c.Manifests.SystemDir)
	c.Manifests.UserDir = expandHome(c.Manifests.UserDir)
	c.Shims.Dir = expandHome(c.Shims.Dir)
	c.Policy.Dir = expandHome(c.Policy.Dir)

	if c.Baseline.Path == "" {
		c.Baseline.Path = filepath.Join(c.StateDir, "baseline.json")
	}
	c.Baseline.Path = expandHome(c.Baseline.Path)

	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.StateDir, "history.db")
	}
	c.History.Path = expandHome(c.History.Path)

	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "dev"
	}
}
