package ui

import "github.com/charmbracelet/lipgloss"

// Colors adapt to light and dark terminals.
var (
	neteaseRed = lipgloss.AdaptiveColor{Light: "#C20C0C", Dark: "#E60026"}
	okGreen    = lipgloss.AdaptiveColor{Light: "#0F7B6C", Dark: "#04B575"}
	warnAmber  = lipgloss.AdaptiveColor{Light: "#CB912F", Dark: "#FFA500"}
	mutedGray  = lipgloss.AdaptiveColor{Light: "#9B9A97", Dark: "#626262"}
)

var styles = newTheme()

// theme holds the styles shared by every view.
type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newTheme() theme {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return theme{
		title: fg(neteaseRed).Bold(true).MarginBottom(1),
		ok:    fg(okGreen).Bold(true),
		err:   fg(neteaseRed).Bold(true),
		warn:  fg(warnAmber),
		help:  fg(mutedGray).Italic(true),
	}
}
