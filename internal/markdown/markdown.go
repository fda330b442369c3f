// Package markdown renders HTML fragments as Markdown. Digest mails use it
// for their text/plain part and the browser uses it before handing text to
// glamour.
package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Converter walks an HTML tree and emits Markdown.
type Converter struct {
	// Tidy collapses runs of blank lines and trims the result.
	Tidy bool
}

func NewConverter() *Converter {
	return &Converter{Tidy: true}
}

// Convert converts an HTML node to markdown
func (c *Converter) Convert(node *html.Node) string {
	if node == nil {
		return ""
	}
	return c.finish(c.convertNode(node))
}

// ConvertHTMLString parses htmlStr and converts its body.
func (c *Converter) ConvertHTMLString(htmlStr string) string {
	if strings.TrimSpace(htmlStr) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	if body := findElement(doc, "body"); body != nil {
		return c.finish(c.convertNode(body))
	}
	return c.finish(c.convertNode(doc))
}

func (c *Converter) finish(s string) string {
	if !c.Tidy {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func (c *Converter) convertNode(node *html.Node) string {
	switch node.Type {
	case html.TextNode:
		return node.Data
	case html.ElementNode:
		return c.convertElement(node)
	case html.DocumentNode:
		return c.convertChildren(node)
	default:
		return ""
	}
}

func (c *Converter) convertElement(node *html.Node) string {
	switch strings.ToLower(node.Data) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return c.convertHeading(node)
	case "p":
		return c.convertParagraph(node)
	case "strong", "b":
		return c.wrap(node, "**")
	case "em", "i":
		return c.wrap(node, "*")
	case "a":
		return c.convertLink(node)
	case "img":
		if alt := attr(node, "alt"); alt != "" {
			return "[" + alt + "]"
		}
		return ""
	case "br":
		return "\n"
	case "ul", "ol":
		return c.convertList(node)
	case "li":
		return c.convertListItem(node)
	case "code":
		return c.wrap(node, "`")
	case "pre":
		return c.convertPre(node)
	case "blockquote":
		return c.convertBlockquote(node)
	case "hr":
		return "\n---\n"
	case "script", "style", "head", "title":
		return ""
	default:
		return c.convertChildren(node)
	}
}

func (c *Converter) convertHeading(node *html.Node) string {
	level, _ := strconv.Atoi(node.Data[1:])
	content := strings.TrimSpace(c.convertChildren(node))
	if content == "" {
		return ""
	}
	return "\n" + strings.Repeat("#", level) + " " + content + "\n\n"
}

func (c *Converter) convertParagraph(node *html.Node) string {
	content := strings.TrimSpace(c.convertChildren(node))
	if content == "" {
		return ""
	}
	return "\n\n" + content + "\n\n"
}

func (c *Converter) wrap(node *html.Node, marker string) string {
	content := c.convertChildren(node)
	if content == "" {
		return ""
	}
	return marker + content + marker
}

func (c *Converter) convertLink(node *html.Node) string {
	content := c.convertChildren(node)
	href := attr(node, "href")
	switch {
	case content == "" && href == "":
		return ""
	case content == "":
		return "<" + href + ">"
	case href == "" || href == content:
		return content
	}
	return "[" + content + "](" + href + ")"
}

func (c *Converter) convertList(node *html.Node) string {
	content := c.convertChildren(node)
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return "\n\n" + content + "\n"
}

// convertListItem numbers items of an ordered list by their position among
// the list's <li> children, honouring a start attribute.
func (c *Converter) convertListItem(node *html.Node) string {
	content := strings.TrimSpace(c.convertChildren(node))
	if content == "" {
		return ""
	}
	parent := node.Parent
	if parent == nil || strings.ToLower(parent.Data) != "ol" {
		return "- " + content + "\n"
	}
	n := 1
	if start, err := strconv.Atoi(attr(parent, "start")); err == nil {
		n = start
	}
	for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && strings.ToLower(sib.Data) == "li" {
			n++
		}
	}
	return strconv.Itoa(n) + ". " + content + "\n"
}

func (c *Converter) convertPre(node *html.Node) string {
	content := c.convertChildren(node)
	if content == "" {
		return ""
	}
	return "\n\n```\n" + strings.TrimRight(content, "\n") + "\n```\n\n"
}

func (c *Converter) convertBlockquote(node *html.Node) string {
	content := strings.TrimSpace(c.convertChildren(node))
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + strings.TrimSpace(line)
		}
	}
	return "\n\n" + strings.Join(lines, "\n") + "\n\n"
}

func (c *Converter) convertChildren(node *html.Node) string {
	var result strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		result.WriteString(c.convertNode(child))
	}
	return result.String()
}

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// FromHTML converts an HTML string to tidy markdown.
func FromHTML(htmlStr string) string {
	return NewConverter().ConvertHTMLString(htmlStr)
}
