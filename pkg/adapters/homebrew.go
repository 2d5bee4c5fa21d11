package adapters

import (
	"context"
	"fmt"
	"strings"
)

// Homebrew drives the brew command line.
type Homebrew struct {
	runner CommandRunner
	brew   string
}

// NewHomebrew returns a homebrew adapter. An empty brew path means "brew" on PATH.
func NewHomebrew(runner CommandRunner, brew string) *Homebrew {
	if brew == "" {
		brew = "brew"
	}
	return &Homebrew{runner: runner, brew: brew}
}

// ListFormulae returns formulae installed on request that nothing depends on.
func (h *Homebrew) ListFormulae(ctx context.Context) ([]string, error) {
	out, err := h.runner.Run(ctx, h.brew, "leaves", "--installed-on-request")
	if err != nil {
		return nil, fmt.Errorf("failed to list formulae: %w", err)
	}
	return lines(out), nil
}

// ListTaps returns tapped repositories.
func (h *Homebrew) ListTaps(ctx context.Context) ([]string, error) {
	out, err := h.runner.Run(ctx, h.brew, "tap")
	if err != nil {
		return nil, fmt.Errorf("failed to list taps: %w", err)
	}
	return lines(out), nil
}

// IsInstalled reports whether formula is installed.
func (h *Homebrew) IsInstalled(ctx context.Context, formula string) (bool, error) {
	out, err := h.runner.Run(ctx, h.brew, "list", "--formula", "--versions", formula)
	if err != nil {
		if ExitCode(err) > 0 {
			return false, nil
		}
		return false, fmt.Errorf("failed to query formula %s: %w", formula, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Tap adds a tap.
func (h *Homebrew) Tap(ctx context.Context, tap string) error {
	_, err := h.runner.Run(ctx, h.brew, "tap", tap)
	return err
}

// Install installs a formula.
func (h *Homebrew) Install(ctx context.Context, formula string) error {
	_, err := h.runner.Run(ctx, h.brew, "install", formula)
	return err
}

// Uninstall removes a formula.
func (h *Homebrew) Uninstall(ctx context.Context, formula string) error {
	_, err := h.runner.Run(ctx, h.brew, "uninstall", formula)
	return err
}
