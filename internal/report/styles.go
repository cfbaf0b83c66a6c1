// Package report renders run results, run history, and the catalog as
// terminal tables.
package report

import (
	"github.com/charmbracelet/lipgloss"
)

// Semantic colors.
var (
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Destructive = lipgloss.Color("#e53935")
	Muted       = lipgloss.Color("#6b7785")
)

// Styles holds the lipgloss styles used by every renderer.
type Styles struct {
	Title lipgloss.Style
	Bold  lipgloss.Style
	Body  lipgloss.Style
	Muted lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Fail  lipgloss.Style
}

// DefaultStyles returns colored styles. lipgloss drops the colors when
// stdout is not a terminal.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Underline(true),
		Bold:  lipgloss.NewStyle().Bold(true),
		Body:  lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().Foreground(Muted),
		OK:    lipgloss.NewStyle().Foreground(Success),
		Warn:  lipgloss.NewStyle().Foreground(Warning),
		Fail:  lipgloss.NewStyle().Foreground(Destructive).Bold(true),
	}
}

// PlainStyles returns styles with no decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Bold: plain, Body: plain, Muted: plain, OK: plain, Warn: plain, Fail: plain}
}
