package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/stores"
)

func (c *cli) newHistoryCommand() *cobra.Command {
	var (
		limit  int
		kind   string
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded apply and capture runs",
		Example: `  # Last 20 runs
  hostsync history

  # Failed applies only
  hostsync history --kind apply --status failed

  # Operations of one run
  hostsync history show 3f2a9c1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, stores.RunFilter{
				Kind:   engine.PlanKind(kind),
				Status: engine.RunStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.writeJSON(runs)
			}
			a.render.Runs(runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&kind, "kind", "", "only runs of this kind: apply or capture")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status")

	cmd.AddCommand(c.newHistoryShowCommand())
	cmd.AddCommand(c.newHistoryPruneCommand())

	return cmd
}

func (c *cli) newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the operations of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			ops, err := store.ListOperations(ctx, run.ID)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.writeJSON(struct {
					*stores.Run
					Operations []*stores.OperationRecord `json:"operations"`
				}{run, ops})
			}
			a.render.RunDetail(run, ops)
			return nil
		},
	}
}

func (c *cli) newHistoryPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.PruneRuns(ctx, keep)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Deleted %d run(s)\n", deleted)
			return err
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "number of runs to keep")

	return cmd
}
