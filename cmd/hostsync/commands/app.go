package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/adapters"
	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/config"
	"github.com/openfroyo/hostsync/pkg/display"
	"github.com/openfroyo/hostsync/pkg/manifest"
	"github.com/openfroyo/hostsync/pkg/stores"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

// app is everything one command invocation needs, wired from configuration.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	log     zerolog.Logger
	host    adapters.HostFacts
	backend string

	manifests *manifest.Store
	set       *components.Set

	render *display.Renderer
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	verbose    bool
	jsonOutput bool
}

// load reads configuration and wires adapters and components. The returned
// context carries the telemetry instance.
func (c *cli) load(cmd *cobra.Command) (*app, context.Context, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Telemetry.ServiceVersion = c.opts.Version
	if c.logLevel != "" {
		cfg.Telemetry.Logging.Level = c.logLevel
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	facts, err := adapters.DetectHost(c.opts.HostRoot)
	if err != nil {
		logger.Warn().Err(err).Msg("Host detection failed")
	}
	backend, err := adapters.ResolveBackend(cfg.Backend, facts)
	if err != nil {
		_ = tel.Shutdown(cmd.Context())
		return nil, nil, err
	}

	runner := c.opts.Runner
	if runner == nil {
		runner = &adapters.ExecRunner{
			Timeout: cfg.Execute.CommandTimeout,
			Env:     []string{"HOMEBREW_NO_AUTO_UPDATE=1"},
			Logger:  logger,
		}
	}
	privileged := runner
	if cfg.Sudo && os.Geteuid() != 0 {
		privileged = adapters.WithSudo(runner)
	}
	systemOpts := []adapters.SystemOption{adapters.WithPrivilegedRunner(privileged)}
	if c.opts.ReposDir != "" {
		systemOpts = append(systemOpts, adapters.WithReposDir(c.opts.ReposDir))
	}

	store := manifest.NewStore(cfg.Manifests.SystemDir, cfg.Manifests.UserDir)
	set := components.NewSet(components.Options{
		Store:           store,
		Flatpak:         adapters.NewFlatpak(runner, cfg.Flatpak.User),
		Extension:       adapters.NewExtensions(runner),
		GSetting:        adapters.NewGSettings(runner),
		System:          adapters.NewSystem(runner, backend, systemOpts...),
		Shim:            adapters.NewShims(cfg.Shims.Dir),
		Homebrew:        adapters.NewHomebrew(runner, cfg.Homebrew.Path),
		GSettingSchemas: cfg.Capture.GSettingSchemas,
		ShimDir:         cfg.Shims.Dir,
		PlanParallel:    cfg.Execute.PlanParallel,
		Logger:          logger,
	})

	logger.Debug().
		Str("backend", backend).
		Str("host", facts.Hostname).
		Bool("immutable", facts.Immutable).
		Str("system_manifests", cfg.Manifests.SystemDir).
		Str("user_manifests", cfg.Manifests.UserDir).
		Msg("Configuration loaded")

	a := &app{
		cfg:        cfg,
		tel:        tel,
		log:        logger,
		host:       facts,
		backend:    backend,
		manifests:  store,
		set:        set,
		render:     display.New(c.opts.Out, display.WithVerbose(c.verbose)),
		in:         c.opts.In,
		out:        c.opts.Out,
		errOut:     c.opts.Err,
		verbose:    c.verbose,
		jsonOutput: c.jsonOutput,
	}
	return a, tel.WithContext(cmd.Context()), nil
}

// close flushes telemetry. Errors are logged, never returned.
func (a *app) close(ctx context.Context) {
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// openHistory opens the execution history database.
func (a *app) openHistory(ctx context.Context) (*stores.SQLiteStore, error) {
	if !a.cfg.History.Enabled {
		return nil, fmt.Errorf("execution history is disabled")
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.History.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return stores.Open(ctx, stores.Config{Path: a.cfg.History.Path})
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
