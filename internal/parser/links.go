package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlzilla/crawlzilla/pkg/urlutil"
)

// extractLinks harvests the internal outbound links of a document: anchors
// resolved against <base href> when present, else the source URL, restricted
// to the source's host. Unique per document, discovery order.
func extractLinks(doc *goquery.Document, source url.URL) []string {
	base := source
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved := resolveHref(source, href); resolved != nil {
			base = *resolved
		}
	}

	links := []string{}
	seen := make(map[string]struct{})

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)

		// pure fragments and self references never leave the page
		if href == "" || href == "./" || strings.HasPrefix(href, "#") {
			return
		}
		if i := strings.Index(href, "#"); i >= 0 {
			href = href[:i]
		}
		if href == "" {
			return
		}

		resolved := resolveHref(base, href)
		if resolved == nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !urlutil.SameHost(*resolved, source) {
			return
		}

		normalizedURL := urlutil.Normalize(*resolved)
		normalized := normalizedURL.String()
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})

	return links
}

func resolveHref(base url.URL, href string) *url.URL {
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	return base.ResolveReference(ref)
}
