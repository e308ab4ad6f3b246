package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/shopfloor/internal/production"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)
	cyanStyle   = lipgloss.NewStyle().Foreground(clrCyan)
	okStyle     = lipgloss.NewStyle().Foreground(clrGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(clrYellow)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(clrBlue)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Width(34)

	cardDoneStyle = cardStyle.BorderForeground(clrGreen)
	cardBusyStyle = cardStyle.BorderForeground(clrBlue)
	cardDeadStyle = cardStyle.BorderForeground(clrDim)
)

// stageGlyph renders a stage status as a single colored mark.
func stageGlyph(s production.StageStatus) string {
	switch s {
	case production.StatusReady:
		return okStyle.Render("✓")
	case production.StatusInProgress:
		return busyStyle.Render("●")
	default:
		return dimStyle.Render("○")
	}
}

func taskStatusStyle(s production.TaskStatus) lipgloss.Style {
	switch s {
	case production.TaskDone:
		return okStyle
	case production.TaskInProgress:
		return busyStyle
	default:
		return subtleStyle
	}
}

// stageLabel shortens a stage key for card rows.
func stageLabel(k production.StageKey) string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// printNotices writes what an operation did, warnings highlighted.
func printNotices(w io.Writer, notices []production.Notice) {
	for _, n := range notices {
		if n.Level == production.LevelWarning {
			fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("⚠"), n.Message)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("·"), n.Message)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
