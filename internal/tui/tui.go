// Package tui is the terminal article browser behind `feedsieve browse`.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

type viewMode int

const (
	tableView viewMode = iota
	filterView
	detailView
)

// Navigation messages
type goToDetailMsg struct {
	item *entry
}
type goToFilterMsg struct{}
type goToTableMsg struct{}
type applyFilterMsg struct {
	query string
}

// entry is one article together with the verdicts recorded for it.
type entry struct {
	article  domain.Article
	feed     string
	verdicts []verdict
}

type verdict struct {
	topic    string
	relevant bool
	summary  string
	tags     []string
}

func (e entry) relevant() bool {
	for _, v := range e.verdicts {
		if v.relevant {
			return true
		}
	}
	return false
}

type rootPage struct {
	viewMode   viewMode
	detailPage detailPage
	tablePage  tablePage
	filterPage filterPage
	width      int
	height     int
	err        error
}

func Run(ctx context.Context, s *store.Store) error {
	entries, err := load(ctx, s)
	if err != nil {
		return fmt.Errorf("query failed while reading articles: %w", err)
	}

	m := rootPage{
		tablePage:  TablePage(entries, 0, 10, 0),
		filterPage: filterPage{input: initializeInput()},
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// load reads every article with its verdicts and feed name, newest first.
func load(ctx context.Context, s *store.Store) ([]entry, error) {
	articles, err := s.ListArticles(ctx, store.ArticleFilter{})
	if err != nil {
		return nil, err
	}
	assessments, err := s.ListAssessments(ctx, store.AssessmentFilter{})
	if err != nil {
		return nil, err
	}
	topics, err := s.ListTopics(ctx, false)
	if err != nil {
		return nil, err
	}
	feeds, err := s.ListFeeds(ctx, false)
	if err != nil {
		return nil, err
	}

	topicNames := make(map[int64]string, len(topics))
	for _, t := range topics {
		topicNames[t.ID] = t.Name
	}
	feedNames := make(map[int64]string, len(feeds))
	for _, f := range feeds {
		feedNames[f.ID] = f.Name
	}
	byArticle := map[int64][]verdict{}
	for _, a := range assessments {
		v := verdict{topic: topicNames[a.TopicID], relevant: a.Relevant, tags: a.Tags}
		if a.Summary != nil {
			v.summary = *a.Summary
		}
		byArticle[a.ArticleID] = append(byArticle[a.ArticleID], v)
	}

	entries := make([]entry, 0, len(articles))
	for _, a := range articles {
		entries = append(entries, entry{article: a, feed: feedNames[a.FeedID], verdicts: byArticle[a.ID]})
	}
	return entries, nil
}

func (m rootPage) Init() tea.Cmd {
	return nil
}

func (m rootPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.viewMode {
	case tableView:
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
	case detailView:
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case filterView:
		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
	}

	switch msg := msg.(type) {
	case goToFilterMsg:
		m.viewMode = filterView
		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
	case goToTableMsg:
		m.viewMode = tableView
	case applyFilterMsg:
		m.viewMode = tableView
		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
	case goToDetailMsg:
		m.viewMode = detailView
		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
	case tea.WindowSizeMsg:
		var cmds []tea.Cmd

		m.tablePage, cmd = update[tablePage](m.tablePage, msg)
		cmds = append(cmds, cmd)

		m.detailPage, cmd = update[detailPage](m.detailPage, msg)
		cmds = append(cmds, cmd)

		m.filterPage, cmd = update[filterPage](m.filterPage, msg)
		cmds = append(cmds, cmd)

		m.width = msg.Width - 4
		m.height = msg.Height - 4

		return m, tea.Batch(cmds...)
	}

	return m, cmd
}

func (m rootPage) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v", m.err)
	}

	switch m.viewMode {
	case detailView:
		return m.detailPage.View()
	case filterView:
		return m.filterPage.View()
	case tableView:
		return m.tablePage.View()
	default:
		return "Unknown View"
	}
}

func update[T any](model tea.Model, msg tea.Msg) (T, tea.Cmd) {
	newModel, cmd := model.Update(msg)
	return newModel.(T), cmd
}
