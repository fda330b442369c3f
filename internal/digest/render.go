package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"feedsieve/internal/markdown"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.New("digest.html.tmpl").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	"join":    strings.Join,
}).ParseFS(templateFS, "templates/digest.html.tmpl"))

// Rendered is a digest ready to be put in a message.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render produces the HTML body and its plain-text alternative.
func Render(d Digest, subjectPrefix string) (Rendered, error) {
	subject := Subject(d, subjectPrefix)
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct {
		Subject string
		Digest  Digest
	}{subject, d}); err != nil {
		return Rendered{}, fmt.Errorf("render digest: %w", err)
	}
	html := buf.String()
	return Rendered{Subject: subject, HTML: html, Text: markdown.FromHTML(html)}, nil
}

func Subject(d Digest, prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "feedsieve digest"
	}
	noun := "articles"
	if d.Count == 1 {
		noun = "article"
	}
	return fmt.Sprintf("%s: %d %s (%s)", prefix, d.Count, noun, d.Until.Format("2006-01-02"))
}
