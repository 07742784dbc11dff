package services

import (
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContentMarkup turns post bodies into what the pages render
type ContentMarkup struct {
	sanitize bool
	policy   *bluemonday.Policy
}

// NewContentMarkup creates the markup helper. With sanitize off, post bodies are
// rendered exactly as the content source returned them.
func NewContentMarkup(sanitize bool) *ContentMarkup {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &ContentMarkup{sanitize: sanitize, policy: policy}
}

// Body returns the post body as trusted HTML
func (m *ContentMarkup) Body(content string) template.HTML {
	if !m.sanitize {
		return template.HTML(content)
	}
	return template.HTML(m.policy.Sanitize(content))
}

// Excerpt returns the first length characters of the post's text, with an
// ellipsis when the text was cut
func Excerpt(content string, length int) string {
	text := strings.Join(strings.Fields(TextContent(content)), " ")
	if utf8.RuneCountInString(text) <= length {
		return text
	}
	runes := []rune(text)
	return string(runes[:length]) + "..."
}

// TextContent returns the concatenated text nodes of an HTML fragment
func TextContent(content string) string {
	nodes, err := html.ParseFragment(strings.NewReader(content), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}

// FirstImage returns the src of the first img element, or "" when there is none
func FirstImage(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					return string(val)
				}
			}
		}
	}
}
