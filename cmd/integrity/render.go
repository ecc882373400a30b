package main

import (
	"fmt"
	"strings"
	"time"

	"integrity-go/internal/integrity"

	"github.com/charmbracelet/lipgloss"
)

var (
	good    = lipgloss.Color("#10B981") // Green
	warning = lipgloss.Color("#F59E0B") // Amber
	bad     = lipgloss.Color("#EF4444") // Red
	muted   = lipgloss.Color("#6B7280") // Gray

	titleStyle   = lipgloss.NewStyle().Bold(true).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(muted).Width(16)
	okStyle      = lipgloss.NewStyle().Foreground(good)
	warnStyle    = lipgloss.NewStyle().Foreground(warning)
	alarmStyle   = lipgloss.NewStyle().Foreground(bad).Bold(true)
	sectionStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// renderReport formats a scan summary for the terminal.
func renderReport(r *integrity.ScanReport) string {
	var b strings.Builder

	title := okStyle.Render("scan complete")
	switch {
	case len(r.Corrupted) > 0 || len(r.Missing) > 0:
		title = alarmStyle.Render("integrity problems found")
	case !r.Success():
		title = warnStyle.Render("scan incomplete")
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	row := func(label string, n int, style lipgloss.Style) {
		value := fmt.Sprint(n)
		if n > 0 {
			value = style.Render(value)
		}
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("files seen", r.FilesSeen, lipgloss.NewStyle())
	row("added", len(r.Added), okStyle)
	row("unchanged", r.Unchanged, lipgloss.NewStyle())
	row("corrupted", len(r.Corrupted), alarmStyle)
	row("still corrupted", len(r.StillCorrupted), warnStyle)
	row("missing", len(r.Missing), alarmStyle)
	row("ignored", r.Ignored, lipgloss.NewStyle())
	row("skipped", len(r.Skipped), warnStyle)
	b.WriteString(labelStyle.Render("duration") + r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String() + "\n")

	list := func(heading string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		b.WriteString(titleStyle.Render(style.Render(heading)) + "\n")
		for _, p := range paths {
			b.WriteString(sectionStyle.Render(p) + "\n")
		}
	}
	list("corrupted", alarmStyle, r.Corrupted)
	list("missing", alarmStyle, r.Missing)

	var failed []string
	for _, root := range r.FailedRoots() {
		failed = append(failed, fmt.Sprintf("%s: %v", root.Root, root.Err))
	}
	list("roots not scanned", warnStyle, failed)

	var skipped []string
	for _, s := range r.Skipped {
		skipped = append(skipped, fmt.Sprintf("%s: %v", s.Path, s.Err))
	}
	list("skipped", warnStyle, skipped)

	return b.String()
}
