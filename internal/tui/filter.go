package tui

import (
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// filterPage edits the query that narrows the article table.
type filterPage struct {
	width  int
	height int
	input  textinput.Model
}

func (m filterPage) Init() tea.Cmd {
	return nil
}

func (m filterPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			query := m.input.Value()
			m.input.Blur()
			return m, func() tea.Msg { return applyFilterMsg{query: query} }
		case tea.KeyTab:
			if !m.input.Focused() {
				m.input.Focus()
			}
			return m, nil
		case tea.KeyEsc:
			if m.input.Focused() {
				m.input.Blur()
				return m, nil
			}
			return m, func() tea.Msg { return goToTableMsg{} }
		}
		if !m.input.Focused() {
			switch msg.String() {
			case "1":
				return m, func() tea.Msg { return goToTableMsg{} }
			case "q":
				return m, tea.Quit
			case "x":
				m.input.SetValue("")
				return m, func() tea.Msg { return applyFilterMsg{} }
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case goToFilterMsg:
		m.input.Focus()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func initializeInput() textinput.Model {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "golang release"
	input.Width = 50
	return input
}

func (m filterPage) View() string {
	instructions := lipgloss.NewStyle().
		MarginTop(min(m.height/4, 10)).
		MarginBottom(2).
		Render("Show articles whose title, URL, feed or relevant topics contain every word")

	borderColor := lipgloss.Color("8")
	if m.input.Focused() {
		borderColor = lipgloss.Color("15")
	}
	input := lipgloss.NewStyle().
		Width(50).
		AlignHorizontal(lipgloss.Left).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(m.input.View())

	var help string
	if m.input.Focused() {
		help = helpBar([]string{"Enter: apply filter", "Esc: unfocus input"})
	} else {
		help = helpBar([]string{"1: articles", "Tab: focus input", "x: clear filter", "q: quit"})
	}

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		renderMenu(1, m.width),
		instructions,
		input,
		lipgloss.NewStyle().MarginTop(2).Render(help),
	)
	return pageLayout(content)
}
