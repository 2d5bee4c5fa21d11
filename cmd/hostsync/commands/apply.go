package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/engine"
)

func (c *cli) newApplyCommand() *cobra.Command {
	var (
		flags runFlags
		prune bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Bring the system in line with the manifests",
		Long: `Plan every selected subsystem, check the plan against the configured
policies, ask for confirmation and execute it.

Declared resources that are missing are installed and differing ones are
updated. Untracked resources are only removed with --prune. Shims are always
regenerated from the manifest. Each run is recorded in the execution history.`,
		Example: `  # Apply everything after confirmation
  hostsync apply

  # Apply flatpaks only, without prompting
  hostsync apply --only flatpak --yes

  # Show what a pruning apply would do
  hostsync apply --prune --dry-run`,
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

			return a.reconcile(ctx, components.PlanRequest{
				Kind:       engine.PlanKindApply,
				Subsystems: subs,
				Prune:      prune,
			}, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&prune, "prune", false, "also remove untracked resources")

	return cmd
}
