package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/policy"
	"github.com/openfroyo/hostsync/pkg/telemetry"
)

type failureView struct {
	Subsystem string `json:"subsystem" yaml:"subsystem"`
	Error     string `json:"error" yaml:"error"`
}

type planView struct {
	Kind               engine.PlanKind `json:"kind" yaml:"kind"`
	engine.Description `yaml:",inline"`
	Failures           []failureView  `json:"failures,omitempty" yaml:"failures,omitempty"`
	Policy             *policy.Result `json:"policy,omitempty" yaml:"policy,omitempty"`
}

func newPlanView(kind engine.PlanKind, desc engine.Description, set *components.PlanSet, res *policy.Result) planView {
	view := planView{Kind: kind, Description: desc, Policy: res}
	for _, f := range set.Failures {
		view.Failures = append(view.Failures, failureView{Subsystem: f.Subsystem.String(), Error: f.Err.Error()})
	}
	return view
}

func (c *cli) newPlanCommand() *cobra.Command {
	var (
		only          []string
		prune         bool
		capture       bool
		sinceBaseline bool
		format        string
	)

	cmd := &cobra.Command{
		Use:     "plan",
		Aliases: []string{"describe"},
		Short:   "Show what apply or capture would do",
		Long: `Plan every selected subsystem and print the operations without executing
anything. The plan is also checked against the configured policies.`,
		Example: `  # Preview apply
  hostsync plan

  # Preview apply including removal of untracked resources, as YAML
  hostsync plan --prune --format yaml

  # Preview capture of keys changed since the baseline
  hostsync plan --capture --since-baseline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := components.ParseList(only)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				format = "json"
			}
			if format != "text" && format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}

			a, ctx, err := c.load(cmd)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			req := components.PlanRequest{Kind: engine.PlanKindApply, Subsystems: subs, Prune: prune}
			if capture {
				req.Kind = engine.PlanKindCapture
				req.Capture, err = a.captureOptions(ctx, sinceBaseline)
				if err != nil {
					return err
				}
			}

			set, err := a.set.PlanAll(ctx, req)
			if err != nil {
				return err
			}
			desc := set.Plan.Describe()
			res, err := a.checkPolicy(ctx, req.Kind, desc)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return a.writeJSON(newPlanView(req.Kind, desc, set, res))
			case "yaml":
				enc := yaml.NewEncoder(a.out)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(newPlanView(req.Kind, desc, set, res))
			default:
				a.render.Plan(desc, set.Failures)
				a.render.Policy(res)
				return nil
			}
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "subsystems to plan (default all)")
	cmd.Flags().BoolVar(&prune, "prune", false, "also remove untracked resources")
	cmd.Flags().BoolVar(&capture, "capture", false, "plan a capture instead of an apply")
	cmd.Flags().BoolVar(&sinceBaseline, "since-baseline", false, "with --capture, capture only keys changed since the baseline")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")

	return cmd
}

// runFlags are shared by apply and capture.
type runFlags struct {
	only   []string
	yes    bool
	dryRun bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "subsystems to reconcile (default all)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "show the plan and stop")
}

// reconcile plans, gates, confirms, executes and records one run.
func (a *app) reconcile(ctx context.Context, req components.PlanRequest, flags runFlags) error {
	set, err := a.set.PlanAll(ctx, req)
	if err != nil {
		return err
	}
	desc := set.Plan.Describe()

	res, err := a.checkPolicy(ctx, req.Kind, desc)
	if err != nil {
		return err
	}
	if !a.jsonOutput {
		a.render.Plan(desc, set.Failures)
		a.render.Policy(res)
	}
	if err := res.Err(); err != nil {
		return err
	}

	if set.Plan.IsEmpty() || flags.dryRun {
		if a.jsonOutput {
			return a.writeJSON(newPlanView(req.Kind, desc, set, res))
		}
		return planFailuresErr(set)
	}

	if !flags.yes {
		ok, err := confirm(a, fmt.Sprintf("Execute %d operation(s)?", desc.Len()))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s cancelled", req.Kind)
		}
	}

	report, err := a.execute(ctx, req.Kind, set.Plan, desc.Len())
	if err != nil {
		return err
	}

	if a.jsonOutput {
		if err := a.writeJSON(report); err != nil {
			return err
		}
	} else {
		a.render.Report(report)
	}

	if !report.Status.IsSuccess() {
		return fmt.Errorf("%s finished with status %s", req.Kind, report.Status)
	}
	return planFailuresErr(set)
}

func planFailuresErr(set *components.PlanSet) error {
	if len(set.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d subsystem(s) could not be planned", len(set.Failures))
}

// checkPolicy evaluates desc against the built-in and configured policies. It
// returns nil when the gate is disabled.
func (a *app) checkPolicy(ctx context.Context, kind engine.PlanKind, desc engine.Description) (*policy.Result, error) {
	if !a.cfg.Policy.Enabled {
		return nil, nil
	}

	eng, err := policy.NewEngine(a.log, policy.Params{
		Protected:   a.cfg.Policy.Protected,
		MaxRemovals: a.cfg.Policy.MaxRemovals,
	})
	if err != nil {
		return nil, err
	}
	if dir := a.cfg.Policy.Dir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			if err := eng.LoadDir(ctx, dir); err != nil {
				return nil, err
			}
		} else {
			a.log.Debug().Str("dir", dir).Msg("Policy directory not found")
		}
	}
	return eng.Evaluate(ctx, kind, desc)
}

// execute runs plan and records the outcome in metrics and history.
func (a *app) execute(ctx context.Context, kind engine.PlanKind, plan engine.Plan, total int) (*engine.ExecutionReport, error) {
	obs := telemetry.NewObserver(a.tel)
	if a.verbose && !a.jsonOutput {
		var done atomic.Int64
		obs.OnFinished = func(res engine.OperationResult) {
			n := done.Add(1)
			_, _ = fmt.Fprintf(a.errOut, "[%d/%d] %s %s\n", n, total, res.Status, res.Operation)
		}
	}

	ec := &engine.ExecContext{
		Logger:      a.log,
		Backend:     a.backend,
		MaxParallel: a.cfg.Execute.MaxParallel,
		Observer:    obs,
	}

	ctx, span := a.tel.Tracer.StartSpan(ctx, "execute", telemetry.AttrPlanKind.String(string(kind)))
	report, err := plan.Execute(ctx, ec)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return nil, err
	}
	span.SetAttributes(telemetry.AttrRunID.String(report.ID), telemetry.AttrStatus.String(string(report.Status)))
	span.End()

	a.tel.Metrics.RecordRun(kind, report)
	a.recordHistory(ctx, kind, report)
	return report, nil
}

func (a *app) recordHistory(ctx context.Context, kind engine.PlanKind, report *engine.ExecutionReport) {
	if !a.cfg.History.Enabled {
		return
	}
	store, err := a.openHistory(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to open execution history")
		return
	}
	defer store.Close()
	if _, err := store.RecordReport(ctx, kind, a.host.Hostname, report); err != nil {
		a.log.Warn().Err(err).Str("run_id", report.ID).Msg("Failed to record execution")
	}
}

// confirm asks on errOut so stdout stays machine-readable.
func confirm(a *app, question string) (bool, error) {
	_, _ = fmt.Fprintf(a.errOut, "%s [y/N] ", question)
	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
