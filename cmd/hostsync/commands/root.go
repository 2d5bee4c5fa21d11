// Package commands implements the hostsync command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfroyo/hostsync/pkg/adapters"
)

// Options carries build information and the process environment into the
// command tree. Zero values select the real host.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// Runner executes external commands. Nil means an ExecRunner.
	Runner adapters.CommandRunner

	// HostRoot is the root host facts are read below. Empty means "/".
	HostRoot string

	// ReposDir overrides the package repository directory.
	ReposDir string

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func (o *Options) setDefaults() {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.HostRoot == "" {
		o.HostRoot = "/"
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
}

// cli holds the global flags shared by every command.
type cli struct {
	opts Options

	configPath string
	verbose    bool
	jsonOutput bool
	logLevel   string
}

// Execute runs the root command
func Execute(ctx context.Context, opts Options) error {
	return NewRootCommand(opts).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(opts Options) *cobra.Command {
	opts.setDefaults()
	c := &cli{opts: opts}

	rootCmd := &cobra.Command{
		Use:   "hostsync",
		Short: "Reconcile a workstation with its declared manifests",
		Long: `hostsync keeps a host in line with layered JSON manifests.

It covers flatpak applications, GNOME shell extensions, configuration keys,
system packages, command shims and homebrew formulae. Every subsystem can
report drift, apply the manifest to the system, or capture what is installed
back into the user manifest.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", opts.Version, opts.Commit, opts.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(opts.In)
	rootCmd.SetOut(opts.Out)
	rootCmd.SetErr(opts.Err)

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "list individual resources and operations")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(c.newStatusCommand())
	rootCmd.AddCommand(c.newPlanCommand())
	rootCmd.AddCommand(c.newApplyCommand())
	rootCmd.AddCommand(c.newCaptureCommand())
	rootCmd.AddCommand(c.newBaselineCommand())
	rootCmd.AddCommand(c.newHistoryCommand())
	rootCmd.AddCommand(c.newVersionCommand())

	return rootCmd
}
