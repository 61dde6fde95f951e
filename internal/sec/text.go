package sec

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// skipElements hold no readable filing text
var skipElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"head":     {},
	"noscript": {},
}

// DocumentText reduces a filing document to whitespace-normalised text.
// Markup is parsed and every text node is kept, separated by a space, so
// adjacent table cells or XML values never run together.
func DocumentText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	if !IsMarkup(body) {
		return collapse(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return collapse(body)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if _, skip := skipElements[n.Data]; skip {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Selection.Nodes {
		walk(n)
	}

	return collapse(strings.Join(parts, " "))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
