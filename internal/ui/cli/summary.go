// Package cli renders run results for the terminal and hosts the optional
// metrics endpoint used in watch mode.
package cli

import (
	"fmt"
	"strings"
	"time"

	"fortrandep/internal/core/app"
	"fortrandep/internal/data/history"
	"fortrandep/internal/engine/graph"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// RenderSummary formats a generation result. Problems are listed before
// the final status line.
func RenderSummary(res *app.Result) string {
	var b strings.Builder
	p := res.Project

	b.WriteString(titleStyle.Render("fortrandep") + "\n")
	fmt.Fprintf(&b, "  files:    %s\n", humanize.Comma(int64(len(p.Files()))))
	fmt.Fprintf(&b, "  units:    %s (%s programs)\n",
		humanize.Comma(int64(len(p.UnitNames()))),
		humanize.Comma(int64(len(p.Programs()))))
	fmt.Fprintf(&b, "  edges:    %s\n", humanize.Comma(int64(p.ModuleGraph().EdgeCount())))
	fmt.Fprintf(&b, "  output:   %s (%s)\n", res.OutputPath, res.OutputStatus)
	b.WriteString(statusStyle.Render("  took "+res.Duration.Round(time.Millisecond).String()) + "\n")

	if len(res.Failures) > 0 {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%d file(s) dropped", len(res.Failures))) + "\n")
		for _, f := range res.Failures {
			fmt.Fprintf(&b, "  %s: %v\n", f.Path, f.Err)
		}
	}

	var fatal, warn []graph.Diagnostic
	for _, d := range res.Diagnostics {
		if d.Fatal() {
			fatal = append(fatal, d)
		} else {
			warn = append(warn, d)
		}
	}
	if len(fatal) > 0 {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%d error(s)", len(fatal))) + "\n")
		for _, d := range fatal {
			b.WriteString("  " + d.String() + "\n")
		}
	}
	if len(warn) > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("%d warning(s)", len(warn))) + "\n")
		for _, d := range warn {
			b.WriteString("  " + d.String() + "\n")
		}
	}

	b.WriteString("\n")
	if res.Success() {
		b.WriteString(successStyle.Render("success") + "\n")
	} else {
		b.WriteString(errorStyle.Render("failed") + "\n")
	}
	return b.String()
}

// RenderHistory formats stored runs, newest first.
func RenderHistory(runs []history.Run, now time.Time) string {
	if len(runs) == 0 {
		return statusStyle.Render("no runs recorded") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("recent runs") + "\n")
	for _, r := range runs {
		status := successStyle.Render("ok")
		if !r.Success {
			status = errorStyle.Render("fail")
		}
		fmt.Fprintf(&b, "  %s  %-4s  %s files  %s units  %d unresolved  %d ambiguous  %d cycles  %s\n",
			shortID(r.ID),
			status,
			humanize.Comma(int64(r.FileCount)),
			humanize.Comma(int64(r.UnitCount)),
			r.UnresolvedCount,
			r.AmbiguousCount,
			r.CycleCount,
			statusStyle.Render(humanize.RelTime(r.Timestamp, now, "ago", "from now")),
		)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
