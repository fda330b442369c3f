package markdown

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func TestConvertHTMLString(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   \n\t  ", ""},
		{"simple text", "Hello World", "Hello World"},
		{"paragraph", "<p>Hello World</p>", "Hello World"},
		{"heading", "<h2>Heading 2</h2>", "## Heading 2"},
		{"bold", "<b>Bold text</b>", "**Bold text**"},
		{"italic", "<em>Italic</em>", "*Italic*"},
		{"nested emphasis", "<p>This is <strong>bold and <em>italic</em></strong> text</p>", "This is **bold and *italic*** text"},
		{"link", `<a href="https://go.dev">Go</a>`, "[Go](https://go.dev)"},
		{"bare link", `<a href="https://go.dev">https://go.dev</a>`, "https://go.dev"},
		{"link without text", `<a href="https://go.dev"></a>`, "<https://go.dev>"},
		{"inline code", "<code>go test ./...</code>", "`go test ./...`"},
		{"image alt", `<img src="x.png" alt="diagram">`, "[diagram]"},
		{"scripts dropped", "<script>alert(1)</script><p>kept</p>", "kept"},
		{"unordered list", "<ul><li>One</li><li>Two</li></ul>", "- One\n- Two"},
		{"ordered list", "<ol><li>First</li><li>Second</li><li>Third</li></ol>", "1. First\n2. Second\n3. Third"},
		{"ordered list start", `<ol start="4"><li>Four</li><li>Five</li></ol>`, "4. Four\n5. Five"},
		{"preformatted", "<pre>func main() {\n}\n</pre>", "```\nfunc main() {\n}\n```"},
		{"blockquote", "<blockquote>quoted\nline</blockquote>", "> quoted\n> line"},
		{"blank runs collapse", "<p>a</p><p></p><p>b</p>", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromHTML(tt.html); got != tt.expected {
				t.Errorf("FromHTML(%q) = %q, want %q", tt.html, got, tt.expected)
			}
		})
	}
}

func TestConvertWithoutTidy(t *testing.T) {
	c := &Converter{}
	if got := c.ConvertHTMLString("<p>Hello</p>"); got != "\n\nHello\n\n" {
		t.Errorf("got %q", got)
	}
}

func TestConvertNode(t *testing.T) {
	if got := NewConverter().Convert(nil); got != "" {
		t.Errorf("nil node: got %q", got)
	}
	doc, err := html.Parse(strings.NewReader("<h1>Title</h1><p>Body</p>"))
	if err != nil {
		t.Fatal(err)
	}
	if got := NewConverter().Convert(doc); got != "# Title\n\nBody" {
		t.Errorf("got %q", got)
	}
}

func TestDigestShapedHTML(t *testing.T) {
	in := `<h2>Go releases</h2>
<ul>
  <li><a href="https://go.dev/blog/go1.23">Go 1.23 is released</a><br>Range over func lands.</li>
</ul>`
	got := FromHTML(in)
	for _, want := range []string{"## Go releases", "- [Go 1.23 is released](https://go.dev/blog/go1.23)", "Range over func lands."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func BenchmarkConvertHTMLString(b *testing.B) {
	in := "<p>This is a simple paragraph with <strong>bold</strong> and <em>italic</em> text.</p><ol><li>a</li><li>b</li></ol>"
	for i := 0; i < b.N; i++ {
		FromHTML(in)
	}
}
