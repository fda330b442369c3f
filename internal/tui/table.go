package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type tablePage struct {
	all   []entry
	items []entry
	query string
	table *table.Table

	ready        bool
	cursor       int
	currentPage  int
	totalPages   int
	tableWidth   int
	tableHeight  int
	titleWidth   int
	feedWidth    int
	statusWidth  int
	dateWidth    int
	previewWidth int
	pageSize     int
}

func TablePage(items []entry, cursor int, pageSize int, currentPage int) tablePage {
	return tablePage{
		all:         items,
		items:       items,
		cursor:      cursor,
		pageSize:    pageSize,
		currentPage: currentPage,
		totalPages:  pages(len(items), pageSize),
	}
}

func pages(n, size int) int {
	if size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

func (m tablePage) Init() tea.Cmd {
	return nil
}

// selected returns the entry under the cursor, or nil.
func (m tablePage) selected() *entry {
	i := m.currentPage*m.pageSize + m.cursor
	if i < 0 || i >= len(m.items) {
		return nil
	}
	return &m.items[i]
}

func (m tablePage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "enter":
			if item := m.selected(); item != nil {
				return m, func() tea.Msg { return goToDetailMsg{item: item} }
			}
			return m, nil
		case "2", "/":
			return m, func() tea.Msg { return goToFilterMsg{} }
		case "k":
			if m.cursor > 0 {
				m.cursor--
			} else if m.currentPage > 0 {
				m.currentPage--
				m.cursor = m.pageSize - 1
			}
			m.updateTableRows()
			return m, nil
		case "j":
			itemsOnCurrentPage := min(m.pageSize, len(m.items)-m.currentPage*m.pageSize)
			if m.cursor < itemsOnCurrentPage-1 {
				m.cursor++
			} else if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
			}
			m.updateTableRows()
			return m, nil
		case "g":
			m.currentPage = 0
			m.cursor = 0
			m.updateTableRows()
			return m, nil
		case "G":
			if len(m.items) == 0 {
				return m, nil
			}
			m.currentPage = m.totalPages - 1
			lastPageItems := len(m.items) % m.pageSize
			if lastPageItems == 0 {
				lastPageItems = m.pageSize
			}
			m.cursor = lastPageItems - 1
			m.updateTableRows()
			return m, nil
		case "l":
			if m.currentPage < m.totalPages-1 {
				m.currentPage++
				m.cursor = 0
				m.updateTableRows()
				// Force a repaint so borders are redrawn.
				return m, tea.ClearScreen
			}
			return m, nil
		case "h":
			if m.currentPage > 0 {
				m.currentPage--
				m.cursor = 0
				m.updateTableRows()
				return m, tea.ClearScreen
			}
			return m, nil
		}
	case applyFilterMsg:
		m.query = msg.query
		m.items = filterEntries(m.all, msg.query)
		m.currentPage = 0
		m.cursor = 0
		m.totalPages = pages(len(m.items), m.pageSize)
		if m.ready {
			m.updateTableRows()
		}
		return m, tea.ClearScreen
	case tea.WindowSizeMsg:
		m.tableWidth = msg.Width - 2
		m.tableHeight = msg.Height
		m.configureTable(msg.Width, msg.Height-4)
		m.ready = true
		return m, tea.ClearScreen
	}

	return m, nil
}

func (m tablePage) View() string {
	if !m.ready {
		return "...Loading"
	}

	menu := renderMenu(0, m.tableWidth)
	if len(m.items) == 0 {
		msg := "No articles in the database"
		if m.query != "" {
			msg = "No articles match \"" + m.query + "\""
		}
		return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, msg, helpBar([]string{"/: filter", "q: quit"})))
	}

	status := ""
	if m.query != "" {
		status = lipgloss.NewStyle().Foreground(lightBlue()).Render("Filter: " + m.query)
	}
	help := helpBar([]string{
		"j/k: move",
		"l/h: page",
		"g/G: home/end",
		"Enter: details",
		"/: filter",
		"q: quit",
	})

	return pageLayout(lipgloss.JoinVertical(lipgloss.Left, menu, status, m.table.Render(), help))
}

func (m *tablePage) updateTableRows() {
	if len(m.items) == 0 {
		return
	}

	headers := []string{
		truncateString("Title", m.titleWidth),
		truncateString("Feed", m.feedWidth),
		truncateString("Status", m.statusWidth),
		truncateString("Date", m.dateWidth),
		truncateString("Preview", m.previewWidth),
	}

	var rows [][]string
	startIdx := m.currentPage * m.pageSize
	endIdx := min(startIdx+m.pageSize, len(m.items))
	pageItems := m.items[startIdx:endIdx]

	for _, item := range pageItems {
		a := item.article
		date := a.CreatedAt
		if a.PublishedAt != nil {
			date = *a.PublishedAt
		}
		rows = append(rows, []string{
			truncateString(a.TitleOr(a.URL), m.titleWidth),
			truncateString(item.feed, m.feedWidth),
			truncateString(statusLabel(item), m.statusWidth),
			truncateString(date.Local().Format("2006-01-02"), m.dateWidth),
			extractPreview(item, m.previewWidth),
		})
	}

	if len(rows) > 0 {
		m.cursor = max(0, min(m.cursor, len(rows)-1))
	}

	lightBlue := lightBlue()
	darkBlue := darkBlue()
	borderStyle := lipgloss.NewStyle().Foreground(darkBlue)
	headerStyle := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(darkBlue).
		Align(lipgloss.Center)

	m.table = table.New().
		Width(m.tableWidth).
		Border(lipgloss.ThickBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row == m.cursor {
				return lipgloss.NewStyle().
					Padding(0, 1).
					Background(lightBlue).
					Foreground(lipgloss.Color("0"))
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 2 && row < len(pageItems) {
				style = style.Foreground(statusColor(pageItems[row]))
			}
			return style
		})
}

// configureTable sizes the page and the columns to the terminal.
func (m *tablePage) configureTable(width, height int) {
	m.pageSize = max(5, height-6)
	m.totalPages = pages(len(m.items), m.pageSize)
	if len(m.items) == 0 {
		return
	}

	m.currentPage = max(0, min(m.currentPage, m.totalPages-1))
	globalCursor := m.currentPage*m.pageSize + m.cursor
	if globalCursor >= len(m.items) {
		globalCursor = len(m.items) - 1
		m.currentPage = globalCursor / m.pageSize
		m.cursor = globalCursor % m.pageSize
	}

	m.dateWidth = 10
	m.statusWidth = 10
	// Two border columns on each side plus three cells of padding per column.
	borderPaddingWidth := 4 + 3*5
	remaining := width - m.dateWidth - m.statusWidth - borderPaddingWidth

	m.titleWidth = max(20, remaining*40/100)
	m.feedWidth = max(10, remaining*15/100)
	m.previewWidth = max(20, remaining*45/100)

	used := m.titleWidth + m.feedWidth + m.previewWidth + m.dateWidth + m.statusWidth + borderPaddingWidth
	if used < width {
		unused := width - used
		m.titleWidth += unused * 40 / 100
		m.feedWidth += unused * 15 / 100
		m.previewWidth += unused * 45 / 100
	}

	m.updateTableRows()
}
