package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// PageContent is the cleaned view of a page handed to the model: readable
// text plus the links the model may choose to follow.
type PageContent struct {
	Title string
	Text  string
	Links []Link
}

// Link is a single anchor extracted from a page.
type Link struct {
	Text string
	Href string
}

// cleanHTML parses raw page HTML and strips it down to the text and links
// that matter for answering a question. Scripts, styles, and embedded
// media are dropped entirely.
func cleanHTML(rawHTML string) (*PageContent, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	content := &PageContent{}
	var text strings.Builder
	collectContent(doc, &text, content)
	content.Text = collapseWhitespace(text.String())
	return content, nil
}

func collectContent(n *html.Node, text *strings.Builder, content *PageContent) {
	if n.Type == html.CommentNode {
		return
	}

	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) {
			return
		}
		switch tag {
		case "title":
			if content.Title == "" {
				content.Title = strings.TrimSpace(nodeText(n))
			}
			return
		case "a":
			href := attrValue(n, "href")
			if strings.HasPrefix(href, "http") {
				content.Links = append(content.Links, Link{
					Text: strings.TrimSpace(nodeText(n)),
					Href: href,
				})
			}
		}
		if isBlockElement(tag) {
			text.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			text.WriteString(trimmed)
			text.WriteString(" ")
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectContent(c, text, content)
	}
}

// nodeText returns the concatenated text content below n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}

// collapseWhitespace squeezes runs of blank lines and trailing spaces left
// behind by block-element removal.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isSkippedElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg":
		return true
	}
	return false
}

func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main",
		"aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "blockquote", "pre", "br":
		return true
	}
	return false
}
