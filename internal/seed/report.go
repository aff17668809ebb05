package seed

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#64b5f6")
	colorSuccess = lipgloss.Color("#66bb6a")
	colorError   = lipgloss.Color("#ef5350")
	colorMuted   = lipgloss.Color("#888888")
)

type reportStyles struct {
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	muted  lipgloss.Style
}

func newReportStyles(noColor bool) reportStyles {
	if noColor {
		plain := lipgloss.NewStyle()
		return reportStyles{
			header: plain,
			label:  plain.Width(24),
			value:  plain,
			good:   plain,
			bad:    plain,
			muted:  plain,
		}
	}
	return reportStyles{
		header: lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
		label:  lipgloss.NewStyle().Width(24),
		value:  lipgloss.NewStyle().Bold(true),
		good:   lipgloss.NewStyle().Foreground(colorSuccess),
		bad:    lipgloss.NewStyle().Foreground(colorError).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(colorMuted),
	}
}

// RenderStats formats the run statistics as a labelled block for a terminal.
func RenderStats(stats *Stats, noColor bool) string {
	st := newReportStyles(noColor)

	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ActivitiesCreated) / stats.Duration.Seconds()
	}

	failed := st.good.Render("0")
	if stats.Failed > 0 {
		failed = st.bad.Render(fmt.Sprint(stats.Failed))
	}

	rows := [][2]string{
		{"Athletes", st.value.Render(fmt.Sprint(stats.Athletes))},
		{"Activities created", st.value.Render(fmt.Sprint(stats.ActivitiesCreated))},
		{"Activities repeated", st.value.Render(fmt.Sprint(stats.ActivitiesRepeated))},
		{"Calendar entries", st.value.Render(fmt.Sprint(stats.EntriesWritten))},
		{"Dashboards verified", st.value.Render(fmt.Sprint(stats.DashboardsVerified))},
		{"Failed athletes", failed},
		{"Duration", st.value.Render(stats.Duration.Round(durationPrecision).String())},
		{"Activities / second", st.value.Render(fmt.Sprintf("%.1f", perSecond))},
	}

	var sb strings.Builder
	sb.WriteString(st.header.Render("Seed summary"))
	sb.WriteString("\n")
	sb.WriteString(st.muted.Render(strings.Repeat("─", 36)))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(st.label.Render(r[0]))
		sb.WriteString(r[1])
		sb.WriteString("\n")
	}
	return sb.String()
}
