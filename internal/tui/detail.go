package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type detailPage struct {
	width        int
	height       int
	viewport     viewport.Model
	selectedItem *entry
}

func (m detailPage) Init() tea.Cmd {
	return nil
}

func (m detailPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, func() tea.Msg { return goToTableMsg{} }
		case "k":
			m.viewport.ScrollUp(1)
			return m, nil
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width - 4
		m.height = msg.Height - 4
		if m.selectedItem != nil {
			m.viewport = setupViewport(m.width, m.height, m.selectedItem)
		}
		return m, nil
	case goToDetailMsg:
		m.selectedItem = msg.item
		m.viewport = setupViewport(m.width, m.height, m.selectedItem)
		return m, nil
	}

	return m, nil
}

func (m detailPage) View() string {
	if m.selectedItem == nil {
		return "No item selected"
	}
	a := m.selectedItem.article

	titleStyle := lipgloss.NewStyle().
		Foreground(darkBlue()).
		Bold(true).
		MarginBottom(1).
		Width(max(20, m.width-8))
	urlStyle := lipgloss.NewStyle().
		Foreground(lightBlue()).
		Italic(true).
		Width(max(20, m.width-8))
	metadataStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		MarginBottom(1)

	date := "unknown date"
	if a.PublishedAt != nil {
		date = a.PublishedAt.Local().Format("2006-01-02 15:04")
	}
	feed := m.selectedItem.feed
	if feed == "" {
		feed = "unknown feed"
	}
	meta := fmt.Sprintf("Feed: %s • Published: %s • Status: %s", feed, date, statusLabel(*m.selectedItem))
	if author := a.Metadata.String("author"); author != "" {
		meta = "Author: " + author + " • " + meta
	}

	scrollPercent := min(1, max(0, m.viewport.ScrollPercent()))
	scroll := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Bold(true).
		Render(fmt.Sprintf("Scroll: %d%%", int(scrollPercent*100)))

	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(a.TitleOr("No title")),
		urlStyle.Render("URL: "+a.URL),
		metadataStyle.Render(meta))

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		scroll,
		helpBar([]string{"j/k: scroll", "g/G: top/bottom", "esc/q: back"}))

	return pageLayout(lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(darkBlue()).
		Render(content))
}

func setupViewport(width, height int, item *entry) viewport.Model {
	contentWidth := max(20, width)
	vp := viewport.New(contentWidth, max(5, height-10))
	vp.SetContent(renderMarkdown(detailMarkdown(*item), contentWidth))
	return vp
}

// detailMarkdown lays out the verdicts followed by the extracted text.
func detailMarkdown(e entry) string {
	var b strings.Builder
	if len(e.verdicts) > 0 {
		b.WriteString("## Verdicts\n\n")
		for _, v := range e.verdicts {
			mark := "not relevant"
			if v.relevant {
				mark = "relevant"
			}
			fmt.Fprintf(&b, "- **%s**: %s", v.topic, mark)
			if v.summary != "" {
				fmt.Fprintf(&b, ". %s", v.summary)
			}
			if len(v.tags) > 0 {
				fmt.Fprintf(&b, " _(%s)_", strings.Join(v.tags, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n---\n\n")
	}

	text := ""
	if e.article.ExtractedText != nil {
		text = strings.TrimSpace(*e.article.ExtractedText)
	}
	switch {
	case text != "":
		b.WriteString(text)
	case e.article.Metadata.String("description") != "":
		b.WriteString(e.article.Metadata.String("description"))
	default:
		b.WriteString("_No extracted text yet._")
	}
	b.WriteString("\n")
	return b.String()
}

// renderMarkdown renders with glamour, falling back to the raw text.
func renderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return "No content available"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(width),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
