package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cu-planner/internal/errors"
)

// CLIFormatter renders reports as styled terminal tables.
// Colors are only emitted when the destination is a terminal.
type CLIFormatter struct {
	// ShowWindows lists every window, not just the summary
	ShowWindows bool
}

// NewCLIFormatter creates a CLI formatter that lists windows
func NewCLIFormatter() *CLIFormatter {
	return &CLIFormatter{ShowWindows: true}
}

// Format returns the format type
func (f *CLIFormatter) Format() Format {
	return FormatCLI
}

type cliStyles struct {
	title   lipgloss.Style
	box     lipgloss.Style
	heading lipgloss.Style
	label   lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
}

func newCLIStyles(w io.Writer) cliStyles {
	r := lipgloss.NewRenderer(w)
	return cliStyles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		heading: r.NewStyle().
			Bold(true).
			Underline(true),
		label: r.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")),
		warn: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("#888888")),
	}
}

// Render produces output for the given report
func (f *CLIFormatter) Render(w io.Writer, report Report) error {
	s := newCLIStyles(w)
	var out string
	switch r := report.(type) {
	case *PlanReport:
		out = f.renderPlan(s, r)
	case *SweepReport:
		out = f.renderSweep(s, r)
	case *LogDeltaReport:
		out = f.renderLogDelta(s, r)
	default:
		return errors.Newf(errors.TypeInternal, "cli formatter cannot render %s reports", report.Kind())
	}
	_, err := io.WriteString(w, out)
	return err
}

func (f *CLIFormatter) renderPlan(s cliStyles, r *PlanReport) string {
	res := r.Result
	var b strings.Builder

	title := "COMPUTE UNIT PLAN"
	if r.Scenario != "" {
		title += " · " + r.Scenario
	}
	summary := []string{
		s.title.Render(title),
		kv(s, "Steps", fmt.Sprintf("%d", res.TotalSteps)),
		kv(s, "Windows", fmt.Sprintf("%d (%d non-empty)", res.WindowCount, res.NonEmptyWindowCount())),
		kv(s, "Effective capacity", fmt.Sprintf("%d (raw %d, margin %d)",
			res.EffectiveCapacity, r.Configuration.RawCapacity, r.Configuration.ReservedMargin)),
		kv(s, "Start offset", fmt.Sprintf("%d (%s)", r.Configuration.StartOffset, r.Configuration.Policy())),
		kv(s, "Total cost", fmt.Sprintf("%d", res.TotalCost)),
		kv(s, "Remaining", fmt.Sprintf("%d", res.RemainingCapacity)),
	}
	if r.Description != "" {
		summary = append(summary[:1], append([]string{s.dim.Render(r.Description)}, summary[1:]...)...)
	}
	b.WriteString(s.box.Render(strings.Join(summary, "\n")))
	b.WriteString("\n\n")

	if res.HasOversized {
		fmt.Fprintf(&b, "%s %d step(s) exceed the effective capacity on their own: %v\n\n",
			s.warn.Render("WARNING"), len(res.OversizedSteps), res.OversizedSteps)
	}

	if f.ShowWindows && len(res.Windows) > 0 {
		b.WriteString(s.heading.Render("WINDOWS"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "%-8s %8s %6s %12s %9s\n", "WINDOW", "START", "SIZE", "COST", "UTIL")
		for _, win := range res.Windows {
			line := fmt.Sprintf("%-8d %8d %6d %12d %8s%%", win.Index, win.Start, win.Size, win.Cost, win.Utilization.StringFixed(2))
			if win.Oversized {
				line += " " + s.warn.Render("OVERSIZED")
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(r.Checkpoints) > 0 {
		b.WriteString(s.heading.Render("CHECKPOINTS"))
		b.WriteString("\n")
		for _, cp := range r.Checkpoints {
			fmt.Fprintf(&b, "%-24s step %-8d window %d\n", cp.Name, cp.Step, cp.Window)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Window sizes:"), intList(res.WindowSizes))
	b.WriteString(metadataLine(s, r.Metadata))
	return b.String()
}

func (f *CLIFormatter) renderSweep(s cliStyles, r *SweepReport) string {
	var b strings.Builder

	title := "CAPACITY SWEEP"
	if r.Scenario != "" {
		title += " · " + r.Scenario
	}
	summary := []string{
		s.title.Render(title),
		kv(s, "Steps", fmt.Sprintf("%d", r.TotalSteps)),
		kv(s, "Max units", fmt.Sprintf("%d", r.Budget.MaxUnits)),
		kv(s, "Security padding", fmt.Sprintf("%d", r.Budget.SecurityPadding)),
		kv(s, "Start offset", fmt.Sprintf("%d (%s)", r.Budget.StartUnits, r.Policy)),
	}
	b.WriteString(s.box.Render(strings.Join(summary, "\n")))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%-10s %12s %8s %12s %10s\n", "IDLE", "EFFECTIVE", "WINDOWS", "REMAINING", "OVERSIZED")
	best, hasBest := r.Best()
	for _, row := range r.Rows {
		if row.Error != "" {
			fmt.Fprintf(&b, "%-10d %s\n", row.IdleUnits, s.warn.Render(row.Error))
			continue
		}
		line := fmt.Sprintf("%-10d %12d %8d %12d %10d", row.IdleUnits, row.EffectiveCapacity,
			row.WindowCount, row.RemainingCapacity, row.OversizedSteps)
		if hasBest && row.IdleUnits == best.IdleUnits {
			line += " " + s.title.Render("<- fewest windows")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(metadataLine(s, r.Metadata))
	return b.String()
}

func (f *CLIFormatter) renderLogDelta(s cliStyles, r *LogDeltaReport) string {
	a := r.Analysis
	var b strings.Builder

	title := "LOG DELTAS"
	if r.Source != "" {
		title += " · " + r.Source
	}
	b.WriteString(s.title.Render(title))
	b.WriteString("\n")
	for _, p := range a.Pairs {
		fmt.Fprintf(&b, "%-6d c: %d\n", p.Index, p.Delta)
	}
	b.WriteString("\n")

	summary := []string{
		kv(s, "Average", fmt.Sprintf("%d (exact %s)", a.Average, a.Mean.String())),
		kv(s, "Min", fmt.Sprintf("%d", a.Min)),
		kv(s, "Max", fmt.Sprintf("%d", a.Max)),
	}
	if a.Skipped > 0 {
		summary = append(summary, kv(s, "Skipped lines", fmt.Sprintf("%d", a.Skipped)))
	}
	if a.Unpaired {
		summary = append(summary, s.dim.Render("trailing unpaired value dropped"))
	}
	b.WriteString(s.box.Render(strings.Join(summary, "\n")))
	b.WriteString("\n")
	b.WriteString(metadataLine(s, r.Metadata))
	return b.String()
}

func kv(s cliStyles, key, value string) string {
	return s.label.Render(key+":") + " " + value
}

func metadataLine(s cliStyles, m Metadata) string {
	parts := []string{"run " + m.RunID}
	if m.InputHash != "" {
		parts = append(parts, "input "+m.InputHash)
	}
	if m.Duration != "" {
		parts = append(parts, "took "+m.Duration)
	}
	if m.Cached {
		parts = append(parts, "cached")
	}
	return s.dim.Render(strings.Join(parts, " · ")) + "\n"
}

func intList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
