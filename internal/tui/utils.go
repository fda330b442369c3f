package tui

import (
	"strings"

	"feedsieve/internal/domain"
)

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// statusLabel is the short pipeline position shown in the table.
func statusLabel(e entry) string {
	if e.relevant() {
		return "relevant"
	}
	switch p := e.article.Phase(); p {
	case domain.PhaseAwaitingFetch:
		return "to fetch"
	case domain.PhaseAwaitingExtraction:
		return "to extract"
	case domain.PhaseAwaitingAssessment:
		return "to assess"
	default:
		return string(p)
	}
}

// matches reports whether every word of query appears in the article's
// title, URL, feed name or topic verdicts, ignoring case.
func matches(e entry, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	var b strings.Builder
	b.WriteString(e.article.TitleOr(""))
	b.WriteByte(' ')
	b.WriteString(e.article.URL)
	b.WriteByte(' ')
	b.WriteString(e.feed)
	for _, v := range e.verdicts {
		if v.relevant {
			b.WriteByte(' ')
			b.WriteString(v.topic)
			b.WriteByte(' ')
			b.WriteString(strings.Join(v.tags, " "))
		}
	}
	haystack := strings.ToLower(b.String())
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

func filterEntries(all []entry, query string) []entry {
	if strings.TrimSpace(query) == "" {
		return all
	}
	var out []entry
	for _, e := range all {
		if matches(e, query) {
			out = append(out, e)
		}
	}
	return out
}

// extractPreview returns the first paragraph of the extracted text on a
// single line.
func extractPreview(e entry, maxLength int) string {
	text := ""
	if e.article.ExtractedText != nil {
		text = *e.article.ExtractedText
	}
	if strings.TrimSpace(text) == "" {
		text = e.article.Metadata.String("description")
	}
	if strings.TrimSpace(text) == "" {
		return "No content"
	}

	for paragraph := range strings.SplitSeq(strings.TrimSpace(text), "\n\n") {
		paragraph = strings.Join(strings.Fields(paragraph), " ")
		if paragraph != "" {
			return truncateString(paragraph, maxLength)
		}
	}
	return "No preview available"
}
