package tui

import (
	"github.com/charmbracelet/lipgloss"

	"feedsieve/internal/domain"
)

func lightBlue() lipgloss.Color {
	return lipgloss.Color("#87CEEB")
}

func darkBlue() lipgloss.Color {
	return lipgloss.Color("#4682B4")
}

// statusColor picks the colour of a status cell.
func statusColor(e entry) lipgloss.Color {
	switch {
	case e.article.State.Status == domain.StatusFailed:
		return lipgloss.Color("1")
	case e.relevant():
		return lipgloss.Color("2")
	case e.article.State.Status == domain.StatusAssessed:
		return lipgloss.Color("8")
	}
	return lipgloss.Color("3")
}
