package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// colorEnabled is false when stdout is not a terminal or NO_COLOR is set,
// so piped output stays plain.
var colorEnabled = term.IsTerminal(int(os.Stdout.Fd())) && !termenv.EnvNoColor()

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true)
	styleAccent  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
)

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func renderSuccess(s string) string { return render(styleSuccess, s) }
func renderWarning(s string) string { return render(styleWarning, s) }
func renderError(s string) string   { return render(styleError, s) }
func renderAccent(s string) string  { return render(styleAccent, s) }
func renderDim(s string) string     { return render(styleDim, s) }
func renderHeading(s string) string { return render(styleHeading, s) }

// renderSeverity colors an issue severity label.
func renderSeverity(sev types.Severity) string {
	label := string(sev)
	switch sev {
	case types.SeverityCritical, types.SeverityHigh:
		return renderError(label)
	case types.SeverityMedium:
		return renderWarning(label)
	default:
		return renderDim(label)
	}
}

// renderStatus colors a task status label.
func renderStatus(status types.Status) string {
	label := string(status)
	switch status {
	case types.StatusDone:
		return renderSuccess(label)
	case types.StatusInProgress:
		return renderAccent(label)
	case types.StatusArchived:
		return renderDim(label)
	default:
		return label
	}
}
