package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if c.jsonOutput {
				enc := json.NewEncoder(out)
				return enc.Encode(map[string]string{
					"version":    c.opts.Version,
					"commit":     c.opts.Commit,
					"build_date": c.opts.BuildDate,
				})
			}
			_, err := fmt.Fprintf(out, "hostsync %s\ncommit: %s\nbuilt: %s\n", c.opts.Version, c.opts.Commit, c.opts.BuildDate)
			return err
		},
	}
}
