// Package feedtest serves a fake RSS feed and its article pages for tests.
package feedtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Item is one <item> of the served feed. Link is a path on the server;
// Extra is raw XML appended inside the item.
type Item struct {
	GUID        string
	Title       string
	Link        string
	PubDate     string
	Description string
	Extra       string
}

type Server struct {
	*httptest.Server

	mu    sync.Mutex
	items []Item
	pages map[string]string
	fail  map[string]int
	hits  map[string]int
}

// Page is the default article page: a JSON-LD block and the body inside <article>.
func Page(body string) string {
	return fmt.Sprintf(`<!doctype html><html><head>
<script type="application/ld+json">{"@type":"NewsArticle","headline":%q}</script>
</head><body><div class="byline">By Ann</div><article><p>%s</p></article></body></html>`, body, body)
}

// New starts a server that serves items at /rss and Page("Body") for every
// other path unless overridden with SetPage.
func New(t testing.TB, items ...Item) *Server {
	t.Helper()
	s := &Server{items: items, pages: map[string]string{}, fail: map[string]int{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) FeedURL() string { return s.URL + "/rss" }

func (s *Server) SetItems(items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

func (s *Server) SetPage(path, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = html
}

// Fail makes path answer with status until Fail(path, 0) is called.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, path)
		return
	}
	s.fail[path] = status
}

func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	status := s.fail[r.URL.Path]
	page, hasPage := s.pages[r.URL.Path]
	items := append([]Item(nil), s.items...)
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if r.URL.Path == "/rss" {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, s.rss(items))
		return
	}
	if !hasPage {
		page = Page("Body")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

func (s *Server) rss(items []Item) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>Awesome blog</title>
<link>` + s.URL + `/</link>
<description>Recent content on the awesome blog</description>
`)
	for _, it := range items {
		sb.WriteString("<item>\n")
		if it.Title != "" {
			sb.WriteString("<title>" + it.Title + "</title>\n")
		}
		if it.Link != "" {
			sb.WriteString("<link>" + s.URL + it.Link + "</link>\n")
		}
		if it.GUID != "" {
			sb.WriteString("<guid isPermaLink=\"false\">" + it.GUID + "</guid>\n")
		}
		if it.PubDate != "" {
			sb.WriteString("<pubDate>" + it.PubDate + "</pubDate>\n")
		}
		if it.Description != "" {
			sb.WriteString("<description><![CDATA[" + it.Description + "]]></description>\n")
		}
		sb.WriteString(it.Extra)
		sb.WriteString("</item>\n")
	}
	sb.WriteString("</channel>\n</rss>\n")
	return sb.String()
}
