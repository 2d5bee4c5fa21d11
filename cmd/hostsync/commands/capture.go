package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/baseline"
	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/engine"
)

func (c *cli) newCaptureCommand() *cobra.Command {
	var (
		flags         runFlags
		sinceBaseline bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record untracked resources in the user manifest",
		Long: `Capture adds what is installed on the system, but not declared, to the
user manifest of each selected subsystem. The system layer is never written.

Configuration keys are captured from the configured schema allow-list, or,
with --since-baseline, only the keys modified or added since the last
baseline snapshot.`,
		Example: `  # Capture everything after confirmation
  hostsync capture

  # Capture configuration keys changed since the baseline
  hostsync capture --only gsetting --since-baseline --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := components.ParseList(flags.only)
			if err != nil {
				return err
			}

			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			opts, err := a.captureOptions(ctx, sinceBaseline)
			if err != nil {
				return err
			}
			return a.reconcile(ctx, components.PlanRequest{
				Kind:       engine.PlanKindCapture,
				Subsystems: subs,
				Capture:    opts,
			}, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&sinceBaseline, "since-baseline", false, "capture only configuration keys changed since the baseline")

	return cmd
}

// captureOptions builds the gsetting capture filter.
func (a *app) captureOptions(ctx context.Context, sinceBaseline bool) (components.CaptureOptions, error) {
	if !sinceBaseline {
		return components.CaptureOptions{
			GSetting: components.GSettingFilter{Schemas: a.cfg.Capture.GSettingSchemas},
		}, nil
	}

	report, err := a.baselineDiff(ctx)
	if err != nil {
		return components.CaptureOptions{}, err
	}
	keys := report.ChangedKeys()
	a.log.Info().Int("keys", len(keys)).Msg("Capturing keys changed since baseline")
	return components.CaptureOptions{GSetting: components.GSettingFilter{Keys: keys}}, nil
}

// baselineDiff compares the live key space with the stored baseline.
func (a *app) baselineDiff(ctx context.Context) (baseline.Report, error) {
	snap, err := baseline.Load(a.cfg.Baseline.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return baseline.Report{}, fmt.Errorf("no baseline at %s, run 'hostsync baseline snapshot' first", a.cfg.Baseline.Path)
	}
	if err != nil {
		return baseline.Report{}, err
	}
	matcher, err := baseline.NewMatcher(a.cfg.Baseline.IgnoreRules)
	if err != nil {
		return baseline.Report{}, err
	}
	values, err := a.set.GSetting.Values(ctx)
	if err != nil {
		return baseline.Report{}, err
	}
	return snap.Diff(values, matcher), nil
}
