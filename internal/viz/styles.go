package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary)
}

func labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted).Width(12)
}

func valueStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Text)
}

func accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Accent)
}

func mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func panelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CurrentTheme.Muted).
		Padding(1, 2)
}

// Label and Value render a "name  value" line the way the live view does.
func Label(s string) string { return labelStyle().Render(s) }
func Value(s string) string { return valueStyle().Render(s) }

// Title renders a heading in the primary color.
func Title(s string) string { return titleStyle().Render(s) }

// ProgressBar renders fraction (clamped to [0, 1]) as a bar width cells wide.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(width, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := CurrentTheme.Bad
	switch {
	case fraction >= 1:
		color = CurrentTheme.Good
	case fraction > 0.4:
		color = CurrentTheme.Warn
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as a one-line bar chart at most width runes long.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	stride := max(1, len(values)/width)
	var b strings.Builder
	for i := 0; i < width && i*stride < len(values); i++ {
		norm := (values[i*stride] - lo) / span
		idx := max(0, min(len(sparkChars)-1, int(norm*float64(len(sparkChars)-1))))
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}

func Separator(width int) string {
	return mutedStyle().Render(strings.Repeat("─", width))
}
