// Package display renders hostsync results for a terminal.
//
// Output is colored with lipgloss when the destination is a terminal and
// NO_COLOR is unset; otherwise the same layout is written as plain text.
package display

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Colors
var (
	headingColor = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	successColor = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	warningColor = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	infoColor    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
)

type styles struct {
	heading lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	info    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Foreground(headingColor).Bold(true),
		muted:   r.NewStyle().Foreground(mutedColor),
		success: r.NewStyle().Foreground(successColor).Bold(true),
		warning: r.NewStyle().Foreground(warningColor).Bold(true),
		err:     r.NewStyle().Foreground(errorColor).Bold(true),
		info:    r.NewStyle().Foreground(infoColor),
	}
}

// ColorEnabled reports whether w is a terminal that should receive color.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
