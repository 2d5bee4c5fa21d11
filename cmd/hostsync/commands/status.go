package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/watch"
)

type statusView struct {
	components.DriftSummary
	Error string `json:"error,omitempty"`
}

func (c *cli) newStatusCommand() *cobra.Command {
	var (
		only      []string
		watchMode bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show drift between the manifests and the system",
		Long: `Show, per subsystem, how many declared resources are pending, how many
installed resources are untracked, and how many are in sync.

A subsystem that cannot be scanned is reported on its own line; the others
are still shown.`,
		Example: `  # Drift of every subsystem
  hostsync status

  # Only flatpak and homebrew, listing identities
  hostsync status --only flatpak,homebrew -v

  # Re-evaluate whenever a manifest changes
  hostsync status --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := components.ParseList(only)
			if err != nil {
				return err
			}

			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if !watchMode {
				return a.showStatus(ctx, subs)
			}
			return a.watchStatus(ctx, subs)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "subsystems to inspect (default all)")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "re-evaluate when manifest files change")

	return cmd
}

// showStatus computes and prints drift. It fails when any subsystem could not
// be scanned.
func (a *app) showStatus(ctx context.Context, subs []components.Subsystem) error {
	results := a.set.StatusAll(ctx, subs)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			a.tel.Metrics.RecordScanError(res.Subsystem.String())
			continue
		}
		a.tel.Metrics.RecordDrift(res.Subsystem.String(), res.Summary.Counts)
	}

	if a.jsonOutput {
		views := make([]statusView, 0, len(results))
		for _, res := range results {
			v := statusView{DriftSummary: res.Summary}
			v.Subsystem = res.Subsystem.String()
			if res.Err != nil {
				v.Error = res.Err.Error()
			}
			views = append(views, v)
		}
		if err := a.writeJSON(views); err != nil {
			return err
		}
	} else {
		a.render.Status(results)
	}

	if failed > 0 {
		return fmt.Errorf("%d subsystem(s) could not be scanned", failed)
	}
	return nil
}

func (a *app) watchStatus(ctx context.Context, subs []components.Subsystem) error {
	if err := os.MkdirAll(a.cfg.Manifests.UserDir, 0o755); err != nil {
		return fmt.Errorf("failed to create user manifest directory: %w", err)
	}

	w, err := watch.New(a.log)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(a.cfg.Manifests.SystemDir, a.cfg.Manifests.UserDir); err != nil {
		return err
	}

	show := func(ctx context.Context) {
		if err := a.showStatus(ctx, subs); err != nil {
			a.log.Warn().Err(err).Msg("Status incomplete")
		}
		if err := a.tel.Metrics.WriteTextfile(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to write metrics")
		}
	}

	show(ctx)
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		a.log.Info().Strs("files", changed).Msg("Manifests changed")
		_, _ = fmt.Fprintln(a.out)
		show(ctx)
	})
}
