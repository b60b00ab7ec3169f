// ABOUTME: Terminal rendering of sync reports, sync state, and run history
// ABOUTME: Styles output with lipgloss when writing to a terminal and falls back to plain text otherwise
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/sync"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Width(12)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type renderer struct {
	w      io.Writer
	styled bool
}

func newRenderer(w io.Writer) renderer {
	f, ok := w.(*os.File)
	return renderer{w: w, styled: ok && term.IsTerminal(int(f.Fd()))}
}

func (r renderer) paint(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// RenderReport prints a run report with one line per collection.
func RenderReport(w io.Writer, report *sync.Report) {
	r := newRenderer(w)

	title := fmt.Sprintf("Sync %s: %s → %s", report.Direction, report.Source, report.Target)
	if report.DryRun {
		title += " (dry run)"
	}
	r.printf("%s\n", r.paint(titleStyle, title))
	r.printf("%s\n\n", r.paint(mutedStyle, fmt.Sprintf("run %s • %s", report.RunID, report.Duration.Round(time.Millisecond))))

	for _, c := range report.Collections {
		line := fmt.Sprintf("%d/%d synced", c.Succeeded, c.Attempted)
		var style lipgloss.Style
		switch {
		case c.Failed > 0:
			style = errorStyle
			line += fmt.Sprintf(", %d failed", c.Failed)
		case c.Skipped > 0 || len(c.Warnings) > 0:
			style = warnStyle
		default:
			style = okStyle
		}
		if c.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", c.Skipped)
		}
		if len(c.Warnings) > 0 {
			line += fmt.Sprintf(", %d references dropped", len(c.Warnings))
		}
		r.printf("  %s %s\n", r.paint(nameStyle, padRight(c.Collection, 12)), r.paint(style, line))
		if c.FirstError != "" {
			r.printf("    %s\n", r.paint(errorStyle, "first error: "+c.FirstError))
		}
	}

	if warnings := report.Warnings(); len(warnings) > 0 {
		r.printf("\n%s\n", r.paint(headerStyle, "Dropped references"))
		for _, w := range warnings {
			r.printf("  • %s\n", w)
		}
	}

	t := report.Totals()
	r.printf("\n")
	switch {
	case report.Partial:
		r.printf("%s\n", r.paint(warnStyle, "⚠ Partial run: "+report.PartialReason))
	case t.Failed > 0:
		r.printf("%s\n", r.paint(errorStyle, fmt.Sprintf("✗ %d of %d rows failed", t.Failed, t.Attempted)))
	default:
		r.printf("%s\n", r.paint(okStyle, fmt.Sprintf("✓ %d rows synced", t.Succeeded)))
	}
}

// RenderStatus prints sync state per direction followed by recent runs.
func RenderStatus(w io.Writer, states []db.SyncState, runs []db.SyncRun) {
	r := newRenderer(w)

	r.printf("%s\n\n", r.paint(titleStyle, "Sync Status"))
	if len(states) == 0 {
		r.printf("%s\n", r.paint(mutedStyle, "No runs recorded yet. Run 'crmbridge sync push' or 'crmbridge sync pull'."))
	}
	for _, st := range states {
		name := r.paint(nameStyle, padRight(st.Service, 12))
		switch st.Status {
		case "error":
			msg := "✗ Error"
			if st.ErrorMessage != nil {
				msg += ": " + *st.ErrorMessage
			}
			r.printf("  %s %s\n", name, r.paint(errorStyle, msg))
		default:
			status := st.Status
			if status != "" {
				status = strings.ToUpper(status[:1]) + status[1:]
			}
			line := r.paint(okStyle, "✓ "+status)
			if st.LastSyncTime != nil {
				line += r.paint(mutedStyle, " • last synced "+formatTimeSince(*st.LastSyncTime))
			}
			r.printf("  %s %s\n", name, line)
		}
	}

	if len(runs) == 0 {
		return
	}
	r.printf("\n%s\n\n", r.paint(headerStyle, "Recent Runs"))
	for _, run := range runs {
		flag := r.paint(okStyle, "✓")
		if run.Failed > 0 {
			flag = r.paint(errorStyle, "✗")
		} else if run.Partial {
			flag = r.paint(warnStyle, "⚠")
		}
		r.printf("  %s %s %-4s → %-8s %d ok, %d failed, %d skipped, %d warnings %s\n",
			flag, run.ID, run.Direction, run.Target,
			run.Succeeded, run.Failed, run.Skipped, run.Warnings,
			r.paint(mutedStyle, formatTimeSince(run.StartedAt)))
	}
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// formatTimeSince formats a time as a relative duration.
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	default:
		return plural(int(d.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
