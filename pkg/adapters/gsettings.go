package adapters

import (
	"context"
	"fmt"
	"strings"
)

// GSettings drives the gsettings command line.
type GSettings struct {
	runner CommandRunner
}

// NewGSettings returns a gsettings adapter.
func NewGSettings(runner CommandRunner) *GSettings {
	return &GSettings{runner: runner}
}

// Dump reads every key of every non-relocatable schema. Values keep the
// GVariant text form gsettings prints, e.g. 'prefer-dark' or ['a', 'b'].
func (g *GSettings) Dump(ctx context.Context) (map[string]string, error) {
	out, err := g.runner.Run(ctx, "gsettings", "list-recursively")
	if err != nil {
		return nil, fmt.Errorf("failed to dump settings: %w", err)
	}
	return parseSettingsDump(out), nil
}

// Set writes a value.
func (g *GSettings) Set(ctx context.Context, schema, key, value string) error {
	_, err := g.runner.Run(ctx, "gsettings", "set", schema, key, value)
	return err
}

// Reset restores a key to its schema default.
func (g *GSettings) Reset(ctx context.Context, schema, key string) error {
	_, err := g.runner.Run(ctx, "gsettings", "reset", schema, key)
	return err
}

func parseSettingsDump(out string) map[string]string {
	values := make(map[string]string)
	for _, line := range lines(out) {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 3 {
			continue
		}
		values[parts[0]+"."+parts[1]] = parts[2]
	}
	return values
}
