// Package extract pulls article text and embedded structured data out of
// fetched HTML. Nothing here performs I/O.
package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	trafilatura "github.com/markusmobius/go-trafilatura"

	"feedsieve/internal/domain"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// SelectorKey tags metadata-selector entries inside the structured data list.
const SelectorKey = "@selector"

type Result struct {
	Text           string
	StructuredData []map[string]any
	// Warnings lists blocks that were skipped, e.g. malformed JSON-LD.
	Warnings []string
}

// Extract runs cfg against rawHTML. With a body selector, the text of every
// non-empty match is joined by a blank line. Without one, readability
// extraction picks the main content.
func Extract(rawHTML string, cfg domain.ExtractionConfig) (Result, error) {
	var res Result
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return res, fmt.Errorf("parse html: %w", err)
	}

	if sel := strings.TrimSpace(cfg.BodySelector); sel != "" {
		res.Text = selectText(doc, sel)
	} else {
		res.Text = readable(rawHTML)
	}

	if cfg.StructuredData {
		res.StructuredData, res.Warnings = jsonLD(doc)
	}

	keys := make([]string, 0, len(cfg.MetadataSelectors))
	for k := range cfg.MetadataSelectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sel := strings.TrimSpace(cfg.MetadataSelectors[k])
		if sel == "" {
			continue
		}
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			res.StructuredData = append(res.StructuredData, map[string]any{SelectorKey: k, "value": v})
		}
	}
	return res, nil
}

func selectText(doc *goquery.Document, sel string) string {
	var parts []string
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func jsonLD(doc *goquery.Document) ([]map[string]any, []string) {
	var (
		out      []map[string]any
		warnings []string
	)
	doc.Find(jsonLDSelector).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			warnings = append(warnings, fmt.Sprintf("json-ld block %d: %v", i, err))
			return
		}
		switch t := v.(type) {
		case map[string]any:
			out = append(out, t)
		case []any:
			for _, el := range t {
				if m, ok := el.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
	})
	return out, warnings
}

func readable(rawHTML string) string {
	res, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback: true,
		Focus:          trafilatura.Balanced,
	})
	if err != nil || res == nil {
		return ""
	}
	return strings.TrimSpace(res.ContentText)
}

// PlainText flattens an HTML fragment (an RSS description, say) into
// whitespace-normalized text.
func PlainText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
