package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openfroyo/hostsync/pkg/baseline"
	"github.com/openfroyo/hostsync/pkg/components"
	"github.com/openfroyo/hostsync/pkg/engine"
	"github.com/openfroyo/hostsync/pkg/policy"
	"github.com/openfroyo/hostsync/pkg/stores"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor forces color on or off.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.color = enabled }
}

// WithVerbose lists individual identities, not just counts.
func WithVerbose(verbose bool) Option {
	return func(r *Renderer) { r.verbose = verbose }
}

// Renderer writes human-readable views of hostsync results.
type Renderer struct {
	w       io.Writer
	color   bool
	verbose bool
	styles  styles
}

// New creates a renderer writing to w. Color defaults to ColorEnabled(w).
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, color: ColorEnabled(w)}
	for _, opt := range opts {
		opt(r)
	}
	r.styles = newStyles(lipgloss.NewRenderer(w))
	return r
}

func (r *Renderer) paint(style lipgloss.Style, s string) string {
	if !r.color {
		return s
	}
	return style.Render(s)
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// Status renders the drift table.
func (r *Renderer) Status(results []components.StatusResult) {
	width := len("SUBSYSTEM")
	for _, res := range results {
		if l := len(res.Subsystem.String()); l > width {
			width = l
		}
	}

	header := fmt.Sprintf("%-*s  %8s  %9s  %6s", width, "SUBSYSTEM", "PENDING", "UNTRACKED", "SYNCED")
	r.printf("%s\n", r.paint(r.styles.heading, header))

	for _, res := range results {
		name := fmt.Sprintf("%-*s", width, res.Subsystem.String())
		if res.Err != nil {
			r.printf("%s  %s\n", name, r.paint(r.styles.err, "error: "+res.Err.Error()))
			continue
		}
		c := res.Summary.Counts
		pending := fmt.Sprintf("%8d", c.Pending)
		untracked := fmt.Sprintf("%9d", c.Untracked)
		if c.Pending > 0 {
			pending = r.paint(r.styles.warning, pending)
		}
		if c.Untracked > 0 {
			untracked = r.paint(r.styles.info, untracked)
		}
		r.printf("%s  %s  %s  %6d\n", name, pending, untracked, c.Synced)

		if r.verbose {
			r.identities("+", res.Summary.ToInstall, r.styles.success)
			r.identities("~", res.Summary.ToUpdate, r.styles.warning)
			r.identities("?", res.Summary.Untracked, r.styles.muted)
		}
	}
}

func (r *Renderer) identities(marker string, ids []string, style lipgloss.Style) {
	for _, id := range ids {
		r.printf("  %s %s\n", r.paint(style, marker), id)
	}
}

// Plan renders a plan description and the subsystems that could not be planned.
func (r *Renderer) Plan(desc engine.Description, failures []components.PlanFailure) {
	if desc.Len() == 0 {
		r.printf("%s\n", r.paint(r.styles.success, "Nothing to do."))
	} else {
		r.printf("%s\n", r.paint(r.styles.heading, fmt.Sprintf("Plan: %d operation(s)", desc.Len())))
		for _, line := range strings.Split(desc.Summary, "\n") {
			r.printf("  %s\n", r.paint(r.styles.muted, line))
		}
		r.printf("\n")
		for _, op := range desc.Operations {
			r.printf("  %s %s\n", r.verb(op.Verb), operationText(op))
		}
	}
	for _, f := range failures {
		r.printf("%s %s: %v\n", r.paint(r.styles.err, "not planned"), f.Subsystem, f.Err)
	}
}

func (r *Renderer) verb(v engine.Verb) string {
	text := fmt.Sprintf("%-14s", v)
	switch {
	case v.IsDestructive():
		return r.paint(r.styles.err, text)
	case v.IsManifestMutation():
		return r.paint(r.styles.info, text)
	default:
		return r.paint(r.styles.success, text)
	}
}

func operationText(op engine.Operation) string {
	text := op.Subsystem + " " + op.Target
	if op.Detail != "" {
		text += " (" + op.Detail + ")"
	}
	return text
}

// Policy renders a policy evaluation. It prints nothing for a clean result.
func (r *Renderer) Policy(res *policy.Result) {
	if res == nil {
		return
	}
	for _, v := range res.Violations {
		r.printf("%s %s\n", r.paint(r.styles.err, "denied"), violationText(v))
	}
	for _, v := range res.Warnings {
		r.printf("%s %s\n", r.paint(r.styles.warning, "warning"), violationText(v))
	}
}

func violationText(v policy.Violation) string {
	text := fmt.Sprintf("[%s] %s", v.Policy, v.Message)
	if v.Target != "" {
		text += fmt.Sprintf(" (%s %s)", v.Subsystem, v.Target)
	}
	return text
}

// Report renders an execution report.
func (r *Renderer) Report(report *engine.ExecutionReport) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		if !r.verbose && res.Status == engine.OperationStatusSucceeded {
			continue
		}
		line := fmt.Sprintf("%s %s", res.Operation.Verb, operationText(res.Operation))
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		r.printf("  %s %s\n", r.status(res.Status), line)
	}
	for _, f := range report.Fatal {
		r.printf("%s %s\n", r.paint(r.styles.err, "fatal"), f.Error())
	}

	s := report.Summary
	summary := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		s.Succeeded, s.Failed, s.Skipped, report.Duration().Round(time.Millisecond))
	r.printf("%s %s\n", r.runStatus(report.Status), summary)
}

func (r *Renderer) status(s engine.OperationStatus) string {
	text := fmt.Sprintf("%-9s", s)
	switch s {
	case engine.OperationStatusSucceeded:
		return r.paint(r.styles.success, text)
	case engine.OperationStatusFailed:
		return r.paint(r.styles.err, text)
	default:
		return r.paint(r.styles.warning, text)
	}
}

func (r *Renderer) runStatus(s engine.RunStatus) string {
	text := string(s)
	switch s {
	case engine.RunStatusSucceeded, engine.RunStatusEmpty:
		return r.paint(r.styles.success, text)
	case engine.RunStatusFailed:
		return r.paint(r.styles.err, text)
	default:
		return r.paint(r.styles.warning, text)
	}
}

// Baseline renders a baseline diff.
func (r *Renderer) Baseline(rep baseline.Report) {
	if rep.IsEmpty() {
		r.printf("%s\n", r.paint(r.styles.success, "No changes since baseline."))
	}
	for _, m := range rep.Modified {
		r.printf("%s %s: %s -> %s\n", r.paint(r.styles.warning, "~"), m.Key, m.Baseline, m.Current)
	}
	for _, a := range rep.Added {
		r.printf("%s %s = %s\n", r.paint(r.styles.success, "+"), a.Key, a.Current)
	}
	for _, rm := range rep.Removed {
		r.printf("%s %s (was %s)\n", r.paint(r.styles.err, "-"), rm.Key, rm.Baseline)
	}
	if rep.Ignored > 0 {
		r.printf("%s\n", r.paint(r.styles.muted, fmt.Sprintf("%d key(s) ignored", rep.Ignored)))
	}
}

// Runs renders stored execution history, newest first.
func (r *Renderer) Runs(runs []*stores.Run) {
	if len(runs) == 0 {
		r.printf("%s\n", r.paint(r.styles.muted, "No runs recorded."))
		return
	}
	header := fmt.Sprintf("%-8s  %-7s  %-9s  %-20s  %9s  %s", "RUN", "KIND", "STATUS", "STARTED", "DURATION", "OK/FAIL/SKIP")
	r.printf("%s\n", r.paint(r.styles.heading, header))
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		r.printf("%-8s  %-7s  %s  %-20s  %9s  %d/%d/%d\n",
			id,
			run.Kind,
			r.runStatus(run.Status)+strings.Repeat(" ", max(0, 9-len(run.Status))),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration().Round(time.Millisecond),
			run.Summary.Succeeded, run.Summary.Failed, run.Summary.Skipped,
		)
	}
}

// RunDetail renders one stored run with its operations.
func (r *Renderer) RunDetail(run *stores.Run, ops []*stores.OperationRecord) {
	r.printf("%s %s\n", r.paint(r.styles.heading, "Run"), run.ID)
	r.printf("  kind:     %s\n", run.Kind)
	r.printf("  status:   %s\n", r.runStatus(run.Status))
	if run.Hostname != "" {
		r.printf("  host:     %s\n", run.Hostname)
	}
	r.printf("  started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	r.printf("  duration: %s\n", run.Duration().Round(time.Millisecond))
	for _, f := range run.Fatal {
		r.printf("  %s %s\n", r.paint(r.styles.err, "fatal"), f)
	}
	if len(ops) == 0 {
		return
	}
	r.printf("\n")
	for _, op := range ops {
		line := fmt.Sprintf("%s %s", op.Operation.Verb, operationText(op.Operation))
		if op.Reason != "" {
			line += ": " + op.Reason
		}
		r.printf("  %s %s\n", r.status(op.Status), line)
	}
}
