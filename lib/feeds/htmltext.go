package feeds

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
)

// PlainText reduces an HTML fragment to its visible text. Feed
// descriptions routinely arrive as markup; the UI layer only wants prose.
func PlainText(fragment string) string {
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return compactWhitespace(fragment)
	}
	return collectText(doc)
}

func collectText(n *html.Node) string {
	buf := new(bytes.Buffer)
	recursiveCollect(n, buf)
	return compactWhitespace(buf.String())
}

func recursiveCollect(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		recursiveCollect(c, buf)
	}
}

func compactWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ")
	return s
}
