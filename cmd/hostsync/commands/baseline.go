package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/baseline"
)

func (c *cli) newBaselineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Snapshot and compare the configuration key space",
		Long: `A baseline is a snapshot of every configuration key, typically taken on a
fresh install. Diffing against it shows what was customized since, which is
what 'capture --since-baseline' records.`,
	}

	cmd.AddCommand(c.newBaselineSnapshotCommand())
	cmd.AddCommand(c.newBaselineDiffCommand())

	return cmd
}

func (c *cli) newBaselineSnapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Store the current configuration keys as the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			values, err := a.set.GSetting.Values(ctx)
			if err != nil {
				return err
			}
			snap := baseline.NewSnapshot(values)
			if err := snap.Save(a.cfg.Baseline.Path); err != nil {
				return err
			}

			a.log.Info().Int("keys", len(values)).Str("path", a.cfg.Baseline.Path).Msg("Baseline saved")
			if a.jsonOutput {
				return a.writeJSON(map[string]any{"path": a.cfg.Baseline.Path, "keys": len(values)})
			}
			_, err = fmt.Fprintf(a.out, "Baseline of %d keys written to %s\n", len(values), a.cfg.Baseline.Path)
			return err
		},
	}
}

func (c *cli) newBaselineDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show configuration keys changed since the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			report, err := a.baselineDiff(ctx)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.writeJSON(report)
			}
			a.render.Baseline(report)
			return nil
		},
	}
}
