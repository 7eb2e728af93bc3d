package robots

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MetaDirectives is the parsed <meta name="robots"> content of a document.
// A missing or unreadable tag permits both indexing and following.
type MetaDirectives struct {
	CanIndex  bool
	CanFollow bool
}

// ParseMetaRobots extracts the robots meta directives from an HTML document.
// It is a pure function; it does not gate fetching.
func ParseMetaRobots(html string) MetaDirectives {
	directives := MetaDirectives{CanIndex: true, CanFollow: true}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return directives
	}

	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name, _ := sel.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "robots") {
			return true
		}
		content, ok := sel.Attr("content")
		if !ok {
			return true
		}
		content = strings.ToLower(content)
		directives.CanIndex = !strings.Contains(content, "noindex")
		directives.CanFollow = !strings.Contains(content, "nofollow")
		return false
	})

	return directives
}
